package errcode

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodesAreStable(t *testing.T) {
	cases := map[Code]string{
		UnknownResource:        "unknown_resource",
		WrongResourceType:      "wrong_resource_type",
		MalformedRequirement:   "malformed_requirement",
		StructuralValidation:   "structural_validation",
		ResourceConflict:       "resource_conflict",
		InvalidDeviceID:        "invalid_device_id",
		DuplicateDeviceID:      "duplicate_device_id",
		ConflictingExtiLine:    "conflicting_exti_line",
		UnsupportedDevice:      "unsupported_device",
		UnknownMCU:             "unknown_mcu",
		DuplicateVocabularyKey: "duplicate_vocabulary_key",
	}
	for c, want := range cases {
		assert.Equal(t, want, c.Error())
	}
}

func TestE(t *testing.T) {
	t.Run("message names the device", func(t *testing.T) {
		err := New(UnknownResource, "adc_1", "resource %s is not defined", "PZ_9")
		assert.Equal(t, "unknown_resource: device adc_1: resource PZ_9 is not defined", err.Error())
	})

	t.Run("errors.Is matches through wrapping", func(t *testing.T) {
		err := fmt.Errorf("allocation failed: %w", New(ResourceConflict, "", "PA_0"))
		assert.ErrorIs(t, err, ResourceConflict)
		assert.NotErrorIs(t, err, DuplicateDeviceID)
		assert.Equal(t, ResourceConflict, Of(err))
	})

	t.Run("wrap keeps the cause", func(t *testing.T) {
		cause := errors.New("boom")
		err := Wrap(StructuralValidation, "rtc", cause)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, StructuralValidation, Of(err))
	})

	t.Run("of falls back to generic code", func(t *testing.T) {
		assert.Equal(t, Error, Of(errors.New("plain")))
		assert.Equal(t, Code(""), Of(nil))
	})
}
