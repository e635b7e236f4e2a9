package domain

// Article представляет отдельную новость, полученную от новостного провайдера.
// ImageURL может быть пустым: это штатная ветка публикации текстом, а не ошибка.
type Article struct {
	Title       string
	Description string
	ImageURL    string
	URL         string
}

// HasImage сообщает, есть ли у статьи картинка для публикации фото-сообщением.
func (a Article) HasImage() bool {
	return a.ImageURL != ""
}

// WithRewrite возвращает копию статьи с переписанными заголовком и описанием.
// URL и ImageURL всегда берутся из исходной статьи.
func (a Article) WithRewrite(r RewrittenArticle) Article {
	a.Title = r.Title
	a.Description = r.Description
	return a
}

// RewrittenArticle - результат работы генеративной модели.
// Структура строго ограничена двумя полями, оба обязательны.
type RewrittenArticle struct {
	Title       string `json:"title" validate:"required,notblank"`
	Description string `json:"description" validate:"required,notblank"`
}

// PublishTarget описывает канал назначения: @username или числовой chat id.
type PublishTarget struct {
	ChannelID string
}

// PublishForm - форма, в которой статья ушла в канал.
type PublishForm string

const (
	FormPhoto PublishForm = "photo"
	FormText  PublishForm = "text"
)
