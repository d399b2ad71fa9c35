package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnterToConfirm_EnterConfirms(t *testing.T) {
	var out bytes.Buffer
	confirm := enterToConfirm(strings.NewReader("\n\n"), &out)

	assert.True(t, confirm(context.Background(), 1, nil))
	assert.True(t, confirm(context.Background(), 2, errors.New("challenge pending")))
	assert.Contains(t, out.String(), "challenge pending")
	assert.Contains(t, out.String(), "press Enter")
}

func TestEnterToConfirm_QuitAndEOF(t *testing.T) {
	var out bytes.Buffer
	confirm := enterToConfirm(strings.NewReader(" Q \n"), &out)

	assert.False(t, confirm(context.Background(), 1, nil))
	assert.False(t, confirm(context.Background(), 2, nil), "closed input abandons the login")
}

func TestEnterToConfirm_AttemptLimit(t *testing.T) {
	var out bytes.Buffer
	confirm := enterToConfirm(strings.NewReader("\n"), &out)

	assert.False(t, confirm(context.Background(), maxConfirmAttempts+1, nil))
	assert.Contains(t, out.String(), "Too many attempts")
}

func TestEnterToConfirm_Cancelled(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	confirm := enterToConfirm(reader, io.Discard)
	assert.False(t, confirm(ctx, 1, nil))
}
