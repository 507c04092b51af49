package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cemetery-api/internal/dto"
	appErrors "github.com/noah-isme/cemetery-api/pkg/errors"
)

func TestValidateStructTrimsAndReportsJSONNames(t *testing.T) {
	v := NewValidator()
	req := dto.ClearPlotRequest{Status: " exhumed ", Note: "  moved  "}
	require.NoError(t, validateStruct(v, &req))
	assert.Equal(t, "exhumed", string(req.Status))
	assert.Equal(t, "moved", req.Note)

	req = dto.ClearPlotRequest{Status: "occupied"}
	err := validateStruct(v, &req)
	appErr := appErrors.FromError(err)
	assert.Equal(t, "status", appErr.Detail("field"))
	assert.Equal(t, "must be one of [available exhumed]", appErr.Detail("reason"))
}

func TestCustomTags(t *testing.T) {
	v := NewValidator()
	type form struct {
		Plot  string `json:"plot" validate:"plot_id"`
		Phone string `json:"phone" validate:"phone11"`
	}
	assert.NoError(t, v.Struct(form{Plot: "RB-L3-K1", Phone: "09171234567"}))
	assert.Error(t, v.Struct(form{Plot: "RB-L3", Phone: "09171234567"}))
	assert.Error(t, v.Struct(form{Plot: "RB-L3-K1", Phone: "0917123456"}))
}
