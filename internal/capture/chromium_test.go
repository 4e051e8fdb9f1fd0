package capture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapturePNGValidatesOptions(t *testing.T) {
	err := CapturePNG(context.Background(), Options{OutputPath: "/tmp/x.png"})
	assert.ErrorContains(t, err, "URL is required")

	err = CapturePNG(context.Background(), Options{URL: "http://127.0.0.1:8080/"})
	assert.ErrorContains(t, err, "OutputPath is required")
}

func TestScreenshotTasks(t *testing.T) {
	var png []byte
	tasks := screenshotTasks(Options{URL: "http://127.0.0.1:8080/", Width: 800, Height: 600}, &png)
	assert.Len(t, tasks, 5)
}
