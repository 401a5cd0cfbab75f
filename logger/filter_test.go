package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type namedMap map[string]any

func TestFilterStringMasksURLPassword(t *testing.T) {
	f := NewSensitiveDataFilter(nil)

	masked := f.FilterString("connectionstring", "mongodb://app:s3cret@db:27017/users")
	assert.NotContains(t, masked, "s3cret")
	assert.Contains(t, masked, "app:")
	assert.Contains(t, masked, "db:27017")

	assert.Equal(t, DefaultMaskValue, f.FilterString("token", "abc"))
	assert.Equal(t, "plain", f.FilterString("name", "plain"))
	assert.Equal(t, "", f.FilterString("password", ""))
}

func TestFilterValueNamedMapsAndSlices(t *testing.T) {
	f := NewSensitiveDataFilter(nil)

	in := namedMap{
		"email": "x@y.z",
		"$or": []any{
			namedMap{"password": "p"},
			namedMap{"age": 3},
		},
	}

	out, ok := f.FilterValue("filter", in).(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "x@y.z", out["email"])

	or, ok := out["$or"].([]any)
	assert.True(t, ok)
	assert.Equal(t, DefaultMaskValue, or[0].(map[string]any)["password"])
	assert.Equal(t, 3, or[1].(map[string]any)["age"])
}

func TestFilterCustomConfig(t *testing.T) {
	f := NewSensitiveDataFilter(&FilterConfig{SensitiveFields: []string{"ssn"}})

	assert.Equal(t, DefaultMaskValue, f.FilterValue("SSN", 123))
	assert.Equal(t, "visible", f.FilterValue("password", "visible"))
	assert.Equal(t, []byte("raw"), f.FilterValue("blob", []byte("raw")))
}
