package panel

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullBody() map[string]any {
	return map[string]any{
		WBC: 7.0, RBC: 4.9, HGB: 14.5, PLT: 250, NEUT: 55,
		LYMPH: 32, MONO: 5, EO: 2.5, BASO: 0.6,
	}
}

func encode(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestParseEachMissingField(t *testing.T) {
	for _, field := range Fields() {
		t.Run(field, func(t *testing.T) {
			body := fullBody()
			delete(body, field)

			_, err := Parse(encode(t, body))

			var missing *MissingFieldError
			require.True(t, errors.As(err, &missing))
			assert.Equal(t, field, missing.Field)
			assert.Equal(t, "Missing required field: "+field, err.Error())
		})
	}
}

func TestValidateReportsFirstMissingInTableOrder(t *testing.T) {
	err := Validate(map[string]any{WBC: 1, RBC: 1})

	var missing *MissingFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, HGB, missing.Field)
}

func TestValidateIgnoresTypes(t *testing.T) {
	body := fullBody()
	body[PLT] = "not a number"
	assert.NoError(t, Validate(body))
}

func TestParseNonNumericString(t *testing.T) {
	for _, field := range Fields() {
		body := fullBody()
		body[field] = "abc"

		_, err := Parse(encode(t, body))

		var invalid *InvalidInputError
		require.True(t, errors.As(err, &invalid), field)
		assert.Equal(t, field, invalid.Field)
		assert.Contains(t, err.Error(), "could not convert string to float: 'abc'")
	}
}

func TestParseNumericStrings(t *testing.T) {
	body := fullBody()
	body[WBC] = " 12.5 "
	body[PLT] = "3e2"
	body[BASO] = "1"

	m, err := Parse(encode(t, body))
	require.NoError(t, err)
	assert.Equal(t, 12.5, m.WBC)
	assert.Equal(t, 300.0, m.PLT)
	assert.Equal(t, 1.0, m.BASO)
}

func TestParseBooleansCoerce(t *testing.T) {
	body := fullBody()
	body[EO] = true
	body[BASO] = false

	m, err := Parse(encode(t, body))
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.EO)
	assert.Equal(t, 0.0, m.BASO)
}

func TestParseRejectsUnusableValues(t *testing.T) {
	cases := map[string]any{
		"null":   nil,
		"array":  []int{1},
		"object": map[string]int{"a": 1},
		"nan":    "nan",
		"inf":    "Infinity",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			body := fullBody()
			body[MONO] = value

			_, err := Parse(encode(t, body))

			var invalid *InvalidInputError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, MONO, invalid.Field)
		})
	}
}

func TestDecodeRejectsNonObjects(t *testing.T) {
	for _, body := range []string{"", "not json", "[1,2,3]", "42", `"WBC"`} {
		_, err := Decode([]byte(body))

		var invalid *InvalidInputError
		require.True(t, errors.As(err, &invalid), "body %q", body)
		assert.Empty(t, invalid.Field)
	}
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	valid := string(encode(t, fullBody()))

	for _, tail := range []string{" garbage", " {}", ` {"WBC": 1}`, "]"} {
		_, err := Parse([]byte(valid + tail))

		var invalid *InvalidInputError
		require.True(t, errors.As(err, &invalid), "tail %q", tail)
		assert.Contains(t, invalid.Error(), "after the JSON object")
	}

	_, err := Parse([]byte(valid + " \n\t"))
	assert.NoError(t, err)
}

func TestParseKeepsExtraFieldsOut(t *testing.T) {
	body := fullBody()
	body["extra"] = "ignored"

	m, err := Parse(encode(t, body))
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 4.9, 14.5, 250, 55, 32, 5, 2.5, 0.6}, m.Vector())
}

func TestFromVectorLength(t *testing.T) {
	_, err := FromVector([]float64{1, 2})
	assert.Error(t, err)
}

func TestResultEchoesInputsInFieldOrder(t *testing.T) {
	m, err := FromVector([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9})
	require.NoError(t, err)

	raw := string(encode(t, NewResult(m, 13, "Normal", "- Normal \n")))

	assert.Contains(t, raw, `"success":true`)
	assert.Contains(t, raw, `"result_code":13`)
	assert.Contains(t, raw, `"disease":"Normal"`)

	echo := raw[strings.Index(raw, `"input_values"`):]
	last := -1
	for _, f := range Fields() {
		pos := strings.Index(echo, `"`+f+`"`)
		require.Greater(t, pos, last, "field %s out of order in %s", f, echo)
		last = pos
	}
}
