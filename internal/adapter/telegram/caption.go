package telegram

import (
	"fmt"
	"html"
	"newsrelay/internal/domain"
	"strings"
	"unicode/utf8"
)

// Лимиты Bot API для подписи к фото и текста сообщения.
const (
	PhotoCaptionLimit = 1024
	MessageTextLimit  = 4096
)

const (
	ellipsis   = "…"
	headFormat = "📰 <b>%s</b>\n\n📝 "

	// minDescriptionRunes - сколько символов описания сохраняется
	// за счет заголовка.
	minDescriptionRunes = 100
)

// BuildCaption собирает HTML-подпись статьи:
//
//	📰 <b>{title}</b>
//
//	📝 {description}
//
//	🔗 <a href="{url}">Read more</a>
//
// Весь текст экранируется. Если подпись длиннее limit, обрезается описание.
// Заголовок обрезается, только когда описанию не остается minDescriptionRunes
// символов. Ссылка сохраняется целиком. Пустой footer не выводится.
func BuildCaption(article domain.Article, footer string, limit int) string {
	tail := fmt.Sprintf("\n\n🔗 <a href=\"%s\">Read more</a>", html.EscapeString(article.URL))
	if footer = strings.TrimSpace(footer); footer != "" {
		tail += "\n\n" + html.EscapeString(footer)
	}
	title := html.EscapeString(article.Title)
	head := fmt.Sprintf(headFormat, title)
	budget := limit - runeLen(head) - runeLen(tail)
	reserve := min(runeLen(html.EscapeString(article.Description)), minDescriptionRunes)
	if budget < reserve {
		head = fmt.Sprintf(headFormat, fitText(article.Title, runeLen(title)-(reserve-budget)))
		budget = limit - runeLen(head) - runeLen(tail)
	}
	return head + fitText(article.Description, budget) + tail
}

// fitText экранирует текст и укладывает его в budget символов,
// обрезая по границе руны и добавляя многоточие.
func fitText(text string, budget int) string {
	escaped := html.EscapeString(text)
	if runeLen(escaped) <= budget {
		return escaped
	}
	if budget < 1 {
		return ""
	}
	runes := []rune(text)
	for n := min(budget-1, len(runes)); n > 0; n-- {
		cut := html.EscapeString(strings.TrimRight(string(runes[:n]), " \t\n")) + ellipsis
		if runeLen(cut) <= budget {
			return cut
		}
	}
	return ellipsis
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
