package notion

import "github.com/cyderes/canvas-notion-sync/internal/models"

// Database column names
const (
	PropName             = "Name"
	PropCourse           = "Course"
	PropDueDate          = "Due Date"
	PropPoints           = "Points"
	PropStatus           = "Status"
	PropSubmissionStatus = "Submission Status"
	PropCanvasURL        = "Canvas URL"
)

type textContent struct {
	Content string `json:"content"`
}

type richText struct {
	Text textContent `json:"text"`
}

type titleProperty struct {
	Title []richText `json:"title"`
}

type richTextProperty struct {
	RichText []richText `json:"rich_text"`
}

type dateValue struct {
	Start string `json:"start"`
}

type dateProperty struct {
	Date *dateValue `json:"date"`
}

type numberProperty struct {
	Number float64 `json:"number"`
}

type selectValue struct {
	Name string `json:"name"`
}

type selectProperty struct {
	Select selectValue `json:"select"`
}

type urlProperty struct {
	URL *string `json:"url"`
}

type pageProperties struct {
	Name             titleProperty    `json:"Name"`
	Course           richTextProperty `json:"Course"`
	DueDate          dateProperty     `json:"Due Date"`
	Points           numberProperty   `json:"Points"`
	Status           selectProperty   `json:"Status"`
	SubmissionStatus selectProperty   `json:"Submission Status"`
	CanvasURL        urlProperty      `json:"Canvas URL"`
}

type parent struct {
	DatabaseID string `json:"database_id"`
}

type createPageRequest struct {
	Parent     parent         `json:"parent"`
	Properties pageProperties `json:"properties"`
}

type updatePageRequest struct {
	Properties pageProperties `json:"properties"`
}

// toPageProperties renders the destination record in Notion's property schema.
// Empty dates and URLs are sent as null; Notion rejects empty strings for both.
func toPageProperties(props models.PageProperties) pageProperties {
	out := pageProperties{
		Name:             titleProperty{Title: []richText{{Text: textContent{Content: props.Title}}}},
		Course:           richTextProperty{RichText: []richText{{Text: textContent{Content: props.Course}}}},
		Points:           numberProperty{Number: props.Points},
		Status:           selectProperty{Select: selectValue{Name: string(props.Status)}},
		SubmissionStatus: selectProperty{Select: selectValue{Name: string(props.SubmissionStatus)}},
	}
	if props.DueDate != "" {
		out.DueDate.Date = &dateValue{Start: props.DueDate}
	}
	if props.URL != "" {
		u := props.URL
		out.CanvasURL.URL = &u
	}
	return out
}

type textFilter struct {
	Equals string `json:"equals"`
}

type propertyFilter struct {
	Property string      `json:"property"`
	Title    *textFilter `json:"title,omitempty"`
	RichText *textFilter `json:"rich_text,omitempty"`
}

type compoundFilter struct {
	And []propertyFilter `json:"and"`
}

type queryRequest struct {
	Filter compoundFilter `json:"filter"`
}

func newPageQuery(title, course string) queryRequest {
	return queryRequest{
		Filter: compoundFilter{And: []propertyFilter{
			{Property: PropName, Title: &textFilter{Equals: title}},
			{Property: PropCourse, RichText: &textFilter{Equals: course}},
		}},
	}
}

// queried page shapes, decoded with mapstructure from the loose query response
type queriedText struct {
	PlainText string `mapstructure:"plain_text"`
	Text      struct {
		Content string `mapstructure:"content"`
	} `mapstructure:"text"`
}

type queriedProperty struct {
	Title    []queriedText `mapstructure:"title"`
	RichText []queriedText `mapstructure:"rich_text"`
}

type queriedPage struct {
	ID         string                     `mapstructure:"id"`
	Archived   bool                       `mapstructure:"archived"`
	Properties map[string]queriedProperty `mapstructure:"properties"`
}

func joinText(parts []queriedText) string {
	var s string
	for _, p := range parts {
		if p.PlainText != "" {
			s += p.PlainText
			continue
		}
		s += p.Text.Content
	}
	return s
}

// matches reports an exact, case-sensitive (title, course) match
func (p queriedPage) matches(title, course string) bool {
	return !p.Archived &&
		joinText(p.Properties[PropName].Title) == title &&
		joinText(p.Properties[PropCourse].RichText) == course
}
