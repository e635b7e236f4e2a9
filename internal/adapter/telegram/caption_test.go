package telegram

import (
	"newsrelay/internal/domain"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestBuildCaption_Template(t *testing.T) {
	article := domain.Article{
		Title:       "New chip announced",
		Description: "It is fast.",
		URL:         "https://example.com/chip",
	}

	caption := BuildCaption(article, "", PhotoCaptionLimit)

	assert.Equal(t,
		"📰 <b>New chip announced</b>\n\n📝 It is fast.\n\n🔗 <a href=\"https://example.com/chip\">Read more</a>",
		caption)
}

func TestBuildCaption_Footer(t *testing.T) {
	article := domain.Article{Title: "T", Description: "D", URL: "https://example.com"}

	caption := BuildCaption(article, " @tgchannelv1 ", MessageTextLimit)

	assert.True(t, strings.HasSuffix(caption, "Read more</a>\n\n@tgchannelv1"))
}

func TestBuildCaption_EscapesHTML(t *testing.T) {
	article := domain.Article{
		Title:       "AT&T <b>breaks</b> records",
		Description: "Speeds > 10Gbps & <script>",
		URL:         "https://example.com/a?x=1&y=\"2\"",
	}

	caption := BuildCaption(article, "", PhotoCaptionLimit)

	assert.Contains(t, caption, "<b>AT&amp;T &lt;b&gt;breaks&lt;/b&gt; records</b>")
	assert.Contains(t, caption, "Speeds &gt; 10Gbps &amp; &lt;script&gt;")
	assert.Contains(t, caption, `href="https://example.com/a?x=1&amp;y=&#34;2&#34;"`)
	assert.NotContains(t, caption, "<script>")
}

func TestBuildCaption_TruncatesDescription(t *testing.T) {
	article := domain.Article{
		Title:       "Long story",
		Description: strings.Repeat("word ", 400),
		URL:         "https://example.com/long",
	}

	caption := BuildCaption(article, "", PhotoCaptionLimit)

	assert.LessOrEqual(t, utf8.RuneCountInString(caption), PhotoCaptionLimit)
	assert.Contains(t, caption, "<b>Long story</b>")
	assert.Contains(t, caption, "…\n\n🔗 <a href=\"https://example.com/long\">Read more</a>")

	text := BuildCaption(article, "", MessageTextLimit)
	assert.NotContains(t, text, "…", "description fits into a text message")
}

func TestBuildCaption_TruncatesOnRuneBoundary(t *testing.T) {
	article := domain.Article{
		Title:       "Юникод",
		Description: strings.Repeat("ё", 2000),
		URL:         "https://example.com/u",
	}

	caption := BuildCaption(article, "", PhotoCaptionLimit)

	assert.True(t, utf8.ValidString(caption))
	assert.Equal(t, PhotoCaptionLimit, utf8.RuneCountInString(caption))
}

func TestBuildCaption_EscapedEntitiesFitLimit(t *testing.T) {
	article := domain.Article{
		Title:       "Ampersands",
		Description: strings.Repeat("&", 1000),
		URL:         "https://example.com/amp",
	}

	caption := BuildCaption(article, "", PhotoCaptionLimit)

	assert.LessOrEqual(t, utf8.RuneCountInString(caption), PhotoCaptionLimit)
	assert.NotContains(t, caption, "&amp…", "entities are never split")
}

func TestBuildCaption_OversizedTitleKeepsDescription(t *testing.T) {
	article := domain.Article{
		Title:       strings.Repeat("a", 1100),
		Description: "Short description.",
		URL:         "https://example.com/huge",
	}

	caption := BuildCaption(article, "@tgchannelv1", PhotoCaptionLimit)

	assert.LessOrEqual(t, utf8.RuneCountInString(caption), PhotoCaptionLimit)
	assert.Contains(t, caption, "aaa…</b>")
	assert.Contains(t, caption, "📝 Short description.")
	assert.True(t, strings.HasSuffix(caption, "<a href=\"https://example.com/huge\">Read more</a>\n\n@tgchannelv1"))
}

func TestBuildCaption_OversizedTitleAndDescription(t *testing.T) {
	article := domain.Article{
		Title:       strings.Repeat("t", 1100),
		Description: strings.Repeat("d", 1100),
		URL:         "https://example.com/both",
	}

	caption := BuildCaption(article, "", PhotoCaptionLimit)

	assert.Equal(t, PhotoCaptionLimit, utf8.RuneCountInString(caption))
	assert.Contains(t, caption, "📝 "+strings.Repeat("d", minDescriptionRunes-1)+"…")
}
