package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServerRef(t *testing.T) {
	ref, err := parseServerRef("db1=10.0.0.5:3306")
	require.NoError(t, err)
	assert.Equal(t, "db1", ref["name"])
	assert.Equal(t, "10.0.0.5", ref["address"])
	assert.Equal(t, 3306, ref["port"])
}

func TestParseServerRefRejectsMissingEquals(t *testing.T) {
	_, err := parseServerRef("db1-10.0.0.5:3306")
	assert.Error(t, err)
}

func TestParseServerRefRejectsMissingColon(t *testing.T) {
	_, err := parseServerRef("db1=10.0.0.5")
	assert.Error(t, err)
}

func TestParseServerRefRejectsNonNumericPort(t *testing.T) {
	_, err := parseServerRef("db1=10.0.0.5:mysql")
	assert.Error(t, err)
}
