package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitRegType(t *testing.T) {
	service, subtypes := splitRegType("_rtsp._tcp,_ravenna_session")
	require.Equal(t, "_rtsp._tcp", service)
	require.Equal(t, []string{"_ravenna_session"}, subtypes)
}

func TestSplitRegTypeNoSubtype(t *testing.T) {
	service, subtypes := splitRegType("_rtsp._tcp")
	require.Equal(t, "_rtsp._tcp", service)
	require.Empty(t, subtypes)
}

func TestTXTRoundTrip(t *testing.T) {
	txt := map[string]string{"api_version": "1", "domain": "0"}
	strs := txtToStrings(txt)
	got := stringsToTXT(strs)
	require.Equal(t, txt, got)
}

func TestStringsToTXTWithoutEquals(t *testing.T) {
	got := stringsToTXT([]string{"flag-only"})
	require.Equal(t, "", got["flag-only"])
}
