package logic

import (
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"wx_herald/dto"
	"wx_herald/shared"
	"wx_herald/texts"
)

const apubContext = "https://www.w3.org/ns/activitystreams"

// Published timestamps carry milliseconds, the way mainstream servers
// render them.
const publishedTimeFormat = "2006-01-02T15:04:05.000Z"

var slotLabels = map[string]string{
	shared.PostForecastMorning: "Morning",
	shared.PostForecastNoon:    "Noon",
	shared.PostForecastEvening: "Evening",
}

//go:generate mockgen --build_flags=--mod=mod -destination mocks/mock_post_builder.go -package mocks wx_herald/logic IPostBuilder

// IPostBuilder renders forecasts and alerts into Notes wrapped in Create
// activities. Building is pure: same input, same output, byte for byte,
// which is what makes republishing after a crash harmless.
type IPostBuilder interface {
	BuildForecastPost(loc *shared.LocationInfo, postType string, slotTime time.Time,
		fc *dto.Forecast) (*dto.Note, *dto.ActivityOut)
	BuildAlertPost(loc *shared.LocationInfo, alert *dto.Alert) (*dto.Note, *dto.ActivityOut)
}

type postBuilder struct {
	cfg       *shared.Config
	txt       texts.ITexts
	idb       shared.IdBuilder
	sanitizer *bluemonday.Policy
}

func NewPostBuilder(cfg *shared.Config, txt texts.ITexts) IPostBuilder {
	policy := bluemonday.NewPolicy()
	policy.AllowElements("p", "br", "strong", "em", "span")
	policy.AllowAttrs("href", "rel", "class").OnElements("a")
	return &postBuilder{
		cfg:       cfg,
		txt:       txt,
		idb:       shared.IdBuilder{Host: cfg.Host},
		sanitizer: policy,
	}
}

func (pb *postBuilder) BuildForecastPost(loc *shared.LocationInfo, postType string,
	slotTime time.Time, fc *dto.Forecast) (*dto.Note, *dto.ActivityOut) {

	postId := shared.PostId(loc.Id, slotTime, postType, "")
	content := pb.txt.WithVals("forecast_post.html", map[string]string{
		"slot_label":  slotLabels[postType],
		"name":        loc.Name,
		"condition":   fc.Condition,
		"temperature": fc.Temperature,
		"narrative":   fc.Narrative,
	})

	note := pb.assembleNote(loc, postId, content, slotPublished(slotTime, postType))
	return note, pb.wrapInCreate(loc, note)
}

func (pb *postBuilder) BuildAlertPost(loc *shared.LocationInfo, alert *dto.Alert) (*dto.Note, *dto.ActivityOut) {

	postId := shared.PostId(loc.Id, time.Time{}, shared.PostAlert, alert.Id)
	content := pb.txt.WithVals("alert_post.html", map[string]string{
		"event":       alert.Event,
		"severity":    alert.Severity,
		"description": alert.Description,
		"onset":       alert.Onset.UTC().Format("Jan 2, 15:04 MST"),
		"ends":        alert.Ends.UTC().Format("Jan 2, 15:04 MST"),
	})

	published := alert.Onset
	if published.IsZero() {
		published = time.Now()
	}
	note := pb.assembleNote(loc, postId, content, published.UTC().Format(publishedTimeFormat))

	// Severe weather goes behind a content warning
	if alert.Severity == dto.SeverityExtreme || alert.Severity == dto.SeveritySevere {
		summary := fmt.Sprintf("%s: %s", alert.Severity, alert.Event)
		note.Summary = &summary
		note.Sensitive = true
	}

	return note, pb.wrapInCreate(loc, note)
}

func (pb *postBuilder) assembleNote(loc *shared.LocationInfo, postId, content, published string) *dto.Note {

	var tags []dto.Tag
	var tagLinks []string
	for _, ht := range loc.Hashtags {
		tags = append(tags, dto.Tag{
			Type: "Hashtag",
			Href: pb.idb.TagUrl(ht),
			Name: "#" + ht,
		})
		tagLinks = append(tagLinks, fmt.Sprintf(`<a href="%s" class="mention hashtag" rel="tag">#%s</a>`,
			pb.idb.TagUrl(ht), ht))
	}
	if len(tagLinks) > 0 {
		content += "<p>" + strings.Join(tagLinks, " ") + "</p>"
	}

	return &dto.Note{
		Id:           pb.idb.PostUrl(postId),
		Type:         "Note",
		Url:          pb.idb.PostUrl(postId),
		Published:    published,
		Summary:      nil,
		AttributedTo: pb.idb.ActorUrl(loc.Id),
		To:           []string{shared.ActivityPublic},
		Cc:           []string{pb.idb.ActorFollowers(loc.Id)},
		Content:      pb.sanitizer.Sanitize(content),
		Tag:          tags,
	}
}

func (pb *postBuilder) wrapInCreate(loc *shared.LocationInfo, note *dto.Note) *dto.ActivityOut {

	postId := lastPathSegment(note.Id)
	to := append([]string{}, note.To...)
	cc := append([]string{}, note.Cc...)
	return &dto.ActivityOut{
		Context: apubContext,
		Id:      pb.idb.ActivityUrl(shared.CreateActivityId(postId)),
		Type:    "Create",
		Actor:   pb.idb.ActorUrl(loc.Id),
		To:      &to,
		Cc:      &cc,
		Object:  note,
	}
}

// slotPublished floors the timestamp to the slot's fixed hour: the date
// comes from slotTime, the hour from the post type, minutes and below are
// zero. A trigger firing at 07:03 still stamps the post 07:00:00.000.
func slotPublished(slotTime time.Time, postType string) string {
	t := slotTime.UTC()
	floored := time.Date(t.Year(), t.Month(), t.Day(), shared.SlotHour(postType), 0, 0, 0, time.UTC)
	return floored.Format(publishedTimeFormat)
}

func lastPathSegment(url string) string {
	ix := strings.LastIndexByte(url, '/')
	if ix < 0 {
		return url
	}
	return url[ix+1:]
}
