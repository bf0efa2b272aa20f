package api

import (
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/gazette/internal/models"
)

// StoryInput is the body accepted by POST /stories, POST /create and
// PUT /stories/{id}. Date is a calendar day or an RFC 3339 timestamp.
type StoryInput struct {
	Author   string `json:"author"`
	Headline string `json:"headline"`
	Public   bool   `json:"public"`
	Content  string `json:"content"`
	Date     string `json:"date"`
}

func (in StoryInput) story() (models.Story, error) {
	d, err := models.ParseDate(in.Date)
	if err != nil {
		return models.Story{}, err
	}
	s := models.Story{
		Author:   in.Author,
		Headline: in.Headline,
		Public:   in.Public,
		Content:  in.Content,
		Date:     d,
	}
	return s, s.Validate()
}

// StoryProperties is the story body inside a StoryResource.
type StoryProperties struct {
	Author   string     `json:"author"`
	Headline string     `json:"headline"`
	Public   bool       `json:"public"`
	Content  string     `json:"content"`
	Date     *time.Time `json:"date"`
}

// StoryResource is one entry of the story listing.
type StoryResource struct {
	Href       string          `json:"href"`
	ID         string          `json:"id,omitempty"`
	Properties StoryProperties `json:"properties"`
}

// HrefResponse points at a created story.
type HrefResponse struct {
	Href string `json:"href"`
}

// LoginResponse is returned by GET /login.
type LoginResponse struct {
	Token   string    `json:"token"`
	Expires int64     `json:"expires"`
	User    LoginUser `json:"user"`
}

// LoginUser identifies the logged-in user.
type LoginUser struct {
	Username string `json:"username"`
}

// EditTitleRequest is the body of PUT /editTitle.
type EditTitleRequest struct {
	Author      string `json:"author"`
	OldHeadline string `json:"oldHeadline"`
	NewHeadline string `json:"newHeadline"`
}

func (r EditTitleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OldHeadline, validation.Required),
		validation.Field(&r.NewHeadline, validation.Required),
	)
}

// EditContentRequest is the body of PUT /editContent.
type EditContentRequest struct {
	Author     string `json:"author"`
	Headline   string `json:"headline"`
	NewContent string `json:"newContent"`
}

func (r EditContentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Headline, validation.Required),
	)
}

func (h *Handler) href(position int) string {
	return h.base + "/stories/" + strconv.Itoa(position)
}

func (h *Handler) resource(position int, s models.Story) StoryResource {
	return StoryResource{
		Href: h.href(position),
		ID:   s.ID,
		Properties: StoryProperties{
			Author:   s.Author,
			Headline: s.Headline,
			Public:   s.Public,
			Content:  s.Content,
			Date:     s.Date,
		},
	}
}
