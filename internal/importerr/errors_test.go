package importerr

import (
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, Format, KindOf(New(Format, "unsupported file %q", "a.xls")))
	assert.Equal(t, Mapping, KindOf(eris.Wrap(New(Mapping, "no title column"), "importer: map columns")))
	assert.Equal(t, Catastrophic, KindOf(errors.New("boom")))
}

func TestIsAbort(t *testing.T) {
	for _, k := range []Kind{Format, Structure, Mapping, Validation} {
		assert.True(t, IsAbort(k), k)
	}
	for _, k := range []Kind{Row, Persistence, Catastrophic} {
		assert.False(t, IsAbort(k), k)
	}
}

func TestError_Text(t *testing.T) {
	assert.Equal(t, "row error at row 4: title is required", RowErr(4, "Hoja1", "title is required").Error())
	assert.Equal(t, "validation error: too many rows", New(Validation, "too many rows").Error())

	wrapped := Wrap(errors.New("disk full"), Persistence, "")
	assert.Equal(t, "persistence error: disk full", wrapped.Error())
	assert.Equal(t, "disk full", Message(wrapped))
	assert.Nil(t, Wrap(nil, Persistence, "x"))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "area not found", Message(RowErr(2, "", "area not found")))
	assert.Equal(t, "plain", Message(errors.New("plain")))
	assert.Empty(t, Message(nil))
}

func TestHintOf(t *testing.T) {
	err := &Error{Kind: Row, Row: 3, Msg: "area not found", Hint: `did you mean "Finanzas"?`}
	assert.Equal(t, `did you mean "Finanzas"?`, HintOf(eris.Wrap(err, "reconcile: resolve area")))
	assert.Empty(t, HintOf(errors.New("boom")))
}
