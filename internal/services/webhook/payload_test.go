package webhook

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestAuditPayloadCutsOnRuneBoundary(t *testing.T) {
	body := []byte(strings.Repeat("a", maxLoggedPayload-1) + "é tail")

	got := auditPayload(body)
	assert.True(t, utf8.ValidString(got))
	assert.Len(t, got, maxLoggedPayload-1)
}

func TestAuditPayloadScrubsBytesPostgresRejects(t *testing.T) {
	got := auditPayload([]byte("{\"memo\":\"OCR\xff\x00abc\"}"))
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "{\"memo\":\"OCR�abc\"}", got)
}

func TestAuditPayloadKeepsShortBodies(t *testing.T) {
	assert.Equal(t, `{"id":1,"content":"Nạp tiền"}`, auditPayload([]byte(`{"id":1,"content":"Nạp tiền"}`)))
}
