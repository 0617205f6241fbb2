package dispatch

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"
)

func mustParseParams(t *testing.T, xml string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(xml))
	return doc.Root()
}
