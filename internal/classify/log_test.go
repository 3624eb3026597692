package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bbreport/internal/foundation/errors"
	"git.home.luguber.info/inful/bbreport/internal/model"
)

func TestLogBanner(t *testing.T) {
	out, err := Log("3 tests failed:\n    test_a test_b test_c", model.StatusFailure)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailure, out.Status)
	assert.Equal(t, "3 failed", out.Message)
	assert.Equal(t, model.TestSet{"test_a", "test_b", "test_c"}, out.FailedTests)
}

func TestLogBannerSpansContinuationLines(t *testing.T) {
	log := "test_zlib\n" +
		"330 tests OK.\n" +
		"4 tests failed:\r\n" +
		"    test_distutils test_ssl\r\n" +
		"\ttest_urllib2net\r\n" +
		"    test_zipfile\r\n" +
		"21 tests skipped:\n" +
		"    test_bsddb3 test_curses\n"

	out, err := Log(log, model.StatusUnknown)
	require.NoError(t, err)
	assert.Equal(t, model.TestSet{"test_distutils", "test_ssl", "test_urllib2net", "test_zipfile"}, out.FailedTests)
	assert.Equal(t, "4 failed", out.Message)
}

func TestLogBannerKeepsException(t *testing.T) {
	out, err := Log("1 test failed:\n    test_os\n", model.StatusException)
	require.NoError(t, err)
	assert.Equal(t, model.StatusException, out.Status)
	assert.Equal(t, model.TestSet{"test_os"}, out.FailedTests)
}

func TestLogBannerCountMismatch(t *testing.T) {
	_, err := Log("3 tests failed:\n    test_a test_b\n", model.StatusFailure)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryLogFormat))
	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.True(t, ce.IsFatal())
}

// The banner is authoritative even when a resource error or a kill marker
// appears in the same log.
func TestLogBannerTakesPrecedence(t *testing.T) {
	log := "OSError: [Errno 28] No space left on device\n" +
		"2 tests failed:\n" +
		"    test_shutil test_tarfile\n" +
		"make: *** [buildbottest] Error 1\n"

	out, err := Log(log, model.StatusFailure)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailure, out.Status)
	assert.Equal(t, "2 failed", out.Message)
	assert.Equal(t, model.TestSet{"test_shutil", "test_tarfile"}, out.FailedTests)
}

func TestLogResourceExhaustion(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"disk", "IOError: [Errno 28] No space left on device", "no space left on device"},
		{"fs", "write failed, FILESYSTEM IS FULL", "filesystem is full"},
		{"memory", "OSError: [Errno 12] Cannot allocate memory", "cannot allocate memory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Log("test_io\n"+tt.line+"\nprocess killed by signal 9\n", model.StatusFailure)
			require.NoError(t, err)
			assert.Equal(t, model.StatusException, out.Status)
			assert.Equal(t, tt.want, out.Message)
			assert.Empty(t, out.FailedTests)
		})
	}
}

func TestLogTimeout(t *testing.T) {
	log := "test_grammar\n" +
		"test_socketserver\n" +
		"\n" +
		"command timed out: 125 seconds, killed\n" +
		"process killed by signal 9\n" +
		"program finished with exit code -1\n"

	out, err := Log(log, model.StatusException)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailure, out.Status)
	assert.Equal(t, "hung for 2 min", out.Message)
	assert.Equal(t, model.TestSet{"test_socketserver"}, out.FailedTests)
}

func TestLogKilledWithoutTimeout(t *testing.T) {
	log := "test_multiprocessing\nprocess killed by signal 11\n"

	out, err := Log(log, model.StatusException)
	require.NoError(t, err)
	assert.Equal(t, model.StatusException, out.Status)
	assert.Equal(t, "process killed by signal 11", out.Message)
	assert.Equal(t, model.TestSet{"test_multiprocessing"}, out.FailedTests)

	out, err = Log(log, model.StatusSuccess)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailure, out.Status)
}

func TestLogMakeFailureUsesLastMarker(t *testing.T) {
	log := "make: *** [buildbottest] Error 1\n" +
		"retrying\n" +
		"Fatal Python error: Segmentation fault\n" +
		"make: *** [buildbottest] Error 139\n"

	out, err := Log(log, model.StatusFailure)
	require.NoError(t, err)
	assert.Equal(t, "make: *** [buildbottest] Error 139", out.Message)
	assert.Empty(t, out.FailedTests)
}

func TestLogFallback(t *testing.T) {
	out, err := Log("Traceback (most recent call last):\n  File \"x.py\"\n", model.StatusFailure)
	require.NoError(t, err)
	assert.Equal(t, model.StatusException, out.Status)
	assert.Equal(t, CrashedMessage, out.Message)
}

func TestLogEmptyIsBuilding(t *testing.T) {
	for _, text := range []string{"", "  \n\t\n"} {
		out, err := Log(text, model.StatusFailure)
		require.NoError(t, err)
		assert.Equal(t, model.StatusBuilding, out.Status)
		assert.Empty(t, out.FailedTests)
		assert.Empty(t, out.Message)
	}
}
