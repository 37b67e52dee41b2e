package commit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/optibot-run/optibot/pkg/compress"
)

func TestBuildMessage(t *testing.T) {
	results := []compress.Result{
		{Path: "img/b.png", SizeBefore: 2048, SizeAfter: 1024},
		{Path: "a.jpg", SizeBefore: 1024, SizeAfter: 512},
	}

	msg := BuildMessage(results)
	lines := strings.Split(strings.TrimRight(msg, "\n"), "\n")

	assert.Equal(t, "[optibot] optimize images", lines[0])
	assert.Equal(t, "", lines[1])
	assert.Equal(t, "*Total -- 3.00kb -> 1.50kb (50.00%)", lines[2])

	// Per-file lines sorted by path, each prefixed with a slash.
	assert.Contains(t, msg, "/a.jpg -- 1.00kb -> 0.50kb (50.00%)")
	assert.Contains(t, msg, "/img/b.png -- 2.00kb -> 1.00kb (50.00%)")
	assert.Less(t, strings.Index(msg, "/a.jpg"), strings.Index(msg, "/img/b.png"))
}

func TestBuildMessageSingleResult(t *testing.T) {
	msg := BuildMessage([]compress.Result{{Path: "x.png", SizeBefore: 100, SizeAfter: 99}})
	assert.Contains(t, msg, "*Total -- 0.10kb -> 0.10kb (1.00%)")
	assert.Contains(t, msg, "/x.png")
}
