package intent

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"actionboard/internal/domain"
)

func TestParseCreateAppliesDefaults(t *testing.T) {
	m, err := Parse(map[string]string{
		"intent": "create", "id": "a1", "title": " Launch ", "date": "2024-03-14T09:30",
		"partner": "acme", "category": "post", "responsibles": "ana, bo,,",
	})
	require.NoError(t, err)
	c, ok := m.(Create)
	require.True(t, ok)
	require.Equal(t, "Launch", c.Action.Title)
	require.Equal(t, domain.StateDo, c.Action.State)
	require.Equal(t, domain.PriorityMedium, c.Action.Priority)
	require.Equal(t, []string{"ana", "bo"}, c.Action.Responsibles)
	require.Equal(t, time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC), c.Action.Date)
	require.Equal(t, "a1:create", Key(m))
}

func TestParseCreateGeneratesID(t *testing.T) {
	m, err := Parse(map[string]string{
		"intent": "create", "title": "x", "date": "2024-03-14", "partner": "acme", "category": "post", "responsibles": "ana",
	})
	require.NoError(t, err)
	require.NotEmpty(t, m.Target())
}

func TestParseCreateRequiredFields(t *testing.T) {
	base := map[string]string{
		"intent": "create", "title": "x", "date": "2024-03-14", "partner": "acme", "category": "post", "responsibles": "ana",
	}
	for _, field := range []string{"title", "date", "partner", "category", "responsibles"} {
		form := map[string]string{}
		for k, v := range base {
			form[k] = v
		}
		delete(form, field)
		_, err := Parse(form)
		var fe FieldError
		require.ErrorAs(t, err, &fe, field)
		require.Equal(t, field, fe.Field)
	}
}

func TestParseUpdateOnlyTouchesSentFields(t *testing.T) {
	m, err := Parse(map[string]string{"intent": "update", "id": "a1", "state": "doing", "files": ""})
	require.NoError(t, err)
	u := m.(Update)
	require.Nil(t, u.Patch.Title)
	require.Nil(t, u.Patch.Date)
	require.Equal(t, "doing", *u.Patch.State)
	require.Equal(t, []string{}, u.Patch.Files)

	before := domain.Action{ID: "a1", Title: "Launch", State: "do", Responsibles: []string{"ana"}, Files: []string{"f"}}
	after := u.Patch.Apply(before)
	require.Equal(t, "doing", after.State)
	require.Equal(t, "Launch", after.Title)
	require.Empty(t, after.Files)
	require.Equal(t, []string{"f"}, before.Files)
}

func TestParseUpdateRejectsEmptyResponsibles(t *testing.T) {
	_, err := Parse(map[string]string{"intent": "update", "id": "a1", "responsibles": " , "})
	var fe FieldError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "responsibles", fe.Field)
}

func TestParseDuplicateAndDelete(t *testing.T) {
	m, err := Parse(map[string]string{"intent": "duplicate", "id": "a1"})
	require.NoError(t, err)
	d := m.(Duplicate)
	require.Equal(t, "a1", d.SourceID)
	require.NotEmpty(t, d.NewID)

	m, err = Parse(map[string]string{"intent": "delete", "id": "a1"})
	require.NoError(t, err)
	require.Equal(t, "a1:delete", Key(m))

	_, err = Parse(map[string]string{"intent": "delete"})
	require.Error(t, err)
}

func TestParseUnknownIntent(t *testing.T) {
	_, err := Parse(map[string]string{"intent": "archive", "id": "a1"})
	require.True(t, errors.Is(err, ErrUnknownIntent))

	_, err = Parse(map[string]string{"id": "a1"})
	var fe FieldError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "intent", fe.Field)
}

func TestParseDateUsesLocationForZonelessValues(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*3600)
	got, err := ParseDate("2024-03-14T09:00", loc)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC), got.UTC())

	got, err = ParseDate("2024-03-14T09:00:00Z", loc)
	require.NoError(t, err)
	require.Equal(t, 9, got.UTC().Hour())

	_, err = ParseDate("14/03/2024", loc)
	require.Error(t, err)
}

func TestFormParsesBack(t *testing.T) {
	state := "review"
	date := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	archived := true
	in := Update{ID: "a1", Patch: Patch{State: &state, Date: &date, Responsibles: []string{"ana", "bo"}, Archived: &archived}}
	out, err := Parse(Form(in))
	require.NoError(t, err)
	u := out.(Update)
	require.Equal(t, "a1", u.ID)
	require.Equal(t, state, *u.Patch.State)
	require.True(t, date.Equal(*u.Patch.Date))
	require.Equal(t, []string{"ana", "bo"}, u.Patch.Responsibles)
	require.True(t, *u.Patch.Archived)
	require.Nil(t, u.Patch.Title)
}

func TestPatchMergeKeepsEarlierFields(t *testing.T) {
	state, title, retitled := "doing", "first", "second"
	date := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	earlier := Patch{State: &state, Title: &title, Files: []string{"a"}}
	merged := earlier.Merge(Patch{Title: &retitled, Date: &date})
	require.Equal(t, "doing", *merged.State)
	require.Equal(t, "second", *merged.Title)
	require.True(t, date.Equal(*merged.Date))
	require.Equal(t, []string{"a"}, merged.Files)
	require.Equal(t, "first", *earlier.Title)
}
