package render

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	assert.Equal(t, "intro-to-go", Slug("Intro to Go"))
	assert.Equal(t, "web-apis-rest", Slug("Web APIs: REST!"))
	assert.Equal(t, "2024-review", Slug("  2024 Review  "))
	assert.Equal(t, "", Slug("!!!"))
}

func TestDocumentWritesHeaderSectionsAndFooter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courses.html")
	doc, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, doc.WriteHeader("Course Catalog", []string{"Intro to Go", "Web APIs"}))
	require.NoError(t, doc.Append("Intro to Go", "Intro to Go", "Lesson one.\n\nLesson two."))
	require.NoError(t, doc.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	got := string(data)

	assert.Contains(t, got, "<title>Course Catalog</title>")
	assert.Contains(t, got, `<a href="#intro-to-go">Intro to Go</a>`)
	assert.Contains(t, got, `<section id="intro-to-go">`)
	assert.Contains(t, got, "<h2>Intro to Go</h2>")
	assert.Contains(t, got, "<p>Lesson one.</p>")
	assert.Contains(t, got, "<p>Lesson two.</p>")
	assert.True(t, strings.HasSuffix(got, "</body>\n</html>\n"))
}

func TestDocumentEscapesGeneratedText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courses.html")
	doc, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, doc.Append("C++ <Basics>", "C++ <Basics>", "Use <vector> & friends."))
	require.NoError(t, doc.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	got := string(data)

	assert.Contains(t, got, "<h2>C++ &lt;Basics&gt;</h2>")
	assert.Contains(t, got, "Use &lt;vector&gt; &amp; friends.")
	assert.NotContains(t, got, "<vector>")
}

func TestDocumentRejectsAppendAfterClose(t *testing.T) {
	doc, err := Open(filepath.Join(t.TempDir(), "courses.html"))
	require.NoError(t, err)
	require.NoError(t, doc.Close())

	err = doc.Append("late", "Late", "body")
	require.Error(t, err)
	var renderErr *RenderError
	assert.ErrorAs(t, err, &renderErr)
}

func TestDocumentConcurrentAppendsDoNotInterleave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courses.html")
	doc, err := Open(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = doc.Append("section", "Section", strings.Repeat("x", 200))
		}(i)
	}
	wg.Wait()
	require.NoError(t, doc.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	opens := strings.Count(string(data), "<section")
	closes := strings.Count(string(data), "</section>")
	assert.Equal(t, 8, opens)
	assert.Equal(t, 8, closes)
}
