package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewServiceAppliesProviderDefaults(t *testing.T) {
	svc, err := NewService(&Config{Provider: "zai", Model: "glm-4.7", APIKey: "test"})
	assert.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestNewServiceRespectsExplicitBaseURL(t *testing.T) {
	svc, err := NewService(&Config{Provider: "openai", Model: "gpt-5.2", APIKey: "test", BaseURL: "https://example.internal/v1"})
	assert.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestTemperatureBandsMatchSpecValues(t *testing.T) {
	assert.Less(t, TemperatureClassification, TemperatureGeneration)
	assert.Less(t, TemperatureExtraction, TemperatureGeneration)
	assert.Equal(t, float32(0.3), TemperatureClassification)
	assert.Equal(t, float32(0.2), TemperatureExtraction)
	assert.Equal(t, float32(0.7), TemperatureGeneration)
}
