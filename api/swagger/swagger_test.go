package swagger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

func TestDocumentRegistered(t *testing.T) {
	raw, err := swag.ReadDoc()
	require.NoError(t, err)

	var doc struct {
		Paths map[string]map[string]interface{} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Contains(t, doc.Paths, "/exhumations/{id}/transition")
	assert.Contains(t, doc.Paths["/reservations"], "post")
	assert.Contains(t, doc.Paths, "/exports/plots")
}
