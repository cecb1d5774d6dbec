package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConditionRange(t *testing.T) {
	c := ParseCondition("18-26")

	assert.False(t, c.Eval(Float(17.9)))
	assert.True(t, c.Eval(Float(18))) // inclusive on both ends
	assert.True(t, c.Eval(Float(22.5)))
	assert.True(t, c.Eval(Float(26)))
	assert.False(t, c.Eval(Float(26.1)))
}

func TestParseConditionGreaterThan(t *testing.T) {
	c := ParseCondition("> 55")

	assert.False(t, c.Eval(Float(55))) // strict
	assert.True(t, c.Eval(Float(55.01)))
	assert.True(t, c.Eval(Float(100)))
}

func TestParseConditionLessThan(t *testing.T) {
	c := ParseCondition("<30")

	assert.True(t, c.Eval(Float(0)))
	assert.True(t, c.Eval(Float(29.9)))
	assert.False(t, c.Eval(Float(30))) // strict
}

func TestParseConditionMalformedNeverMatches(t *testing.T) {
	for _, text := range []string{"", "dry", "a-b", "18-", ">", "> wet", "< ", "18--26"} {
		c := ParseCondition(text)
		assert.False(t, c.Eval(Float(50)), "text %q must never match", text)
		assert.False(t, c.Eval(Float(0)), "text %q must never match", text)
	}
}

func TestEvalNilReadingIsFalse(t *testing.T) {
	for _, text := range []string{"18-26", "> 55", "< 30", "garbage"} {
		assert.False(t, ParseCondition(text).Eval(nil), "nil reading, text %q", text)
	}
}

func TestConditionWhitespaceTolerant(t *testing.T) {
	assert.True(t, ParseCondition("  35 - 55 ").Eval(Float(45)))
	assert.True(t, ParseCondition(" >  60 ").Eval(Float(61)))
}

func TestConditionJSONRoundTrip(t *testing.T) {
	var c Condition
	require.NoError(t, json.Unmarshal([]byte(`"35-55"`), &c))
	assert.True(t, c.Eval(Float(35)))
	assert.False(t, c.Eval(Float(55.5)))

	b, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, `"35-55"`, string(b))
}
