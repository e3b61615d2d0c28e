package resourcequery

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tollgate-io/tollgate/pkg/apperror"
	"github.com/tollgate-io/tollgate/pkg/schema"
)

func widgetMeta() *schema.Metadata {
	widget := schema.NewMetadata("widget", "id", "name", "owner_id")
	owner := schema.NewMetadata("owner", "id", "email", "company_id")
	company := schema.NewMetadata("company", "id", "title")

	widget.AddRelation("owner", owner)
	owner.AddRelation("company", company)
	// Cycle back to the root.
	company.AddRelation("widgets", widget)
	return widget
}

func assertBadRequest(t *testing.T, err error, namespace string) {
	t.Helper()
	appErr := apperror.As(err)
	require.NotNil(t, appErr, "expected a domain error, got %v", err)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, namespace, appErr.Namespace)
}

func TestParseTake(t *testing.T) {
	meta := widgetMeta()

	t.Run("absent yields no value", func(t *testing.T) {
		got, err := ParseTake(nil, meta)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("number and numeric string round-trip", func(t *testing.T) {
		fromNumber, err := ParseTake(float64(5), meta)
		require.NoError(t, err)
		fromString, err := ParseTake("5", meta)
		require.NoError(t, err)
		assert.Equal(t, 5, *fromNumber)
		assert.Equal(t, *fromNumber, *fromString)
	})

	t.Run("invalid values", func(t *testing.T) {
		for _, take := range []interface{}{float64(0), float64(-1), "0", "-3", "abc", "1asd", float64(1.5), "2.5", true} {
			_, err := ParseTake(take, meta)
			assertBadRequest(t, err, "widget")
		}
	})
}

func TestParseSkip(t *testing.T) {
	meta := widgetMeta()

	t.Run("zero is valid", func(t *testing.T) {
		got, err := ParseSkip(float64(0), meta)
		require.NoError(t, err)
		assert.Equal(t, 0, *got)

		got, err = ParseSkip("0", meta)
		require.NoError(t, err)
		assert.Equal(t, 0, *got)
	})

	t.Run("absent yields no value", func(t *testing.T) {
		got, err := ParseSkip(nil, meta)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("invalid values", func(t *testing.T) {
		for _, skip := range []interface{}{float64(-1), "-1", "10asd", "x", float64(0.5)} {
			_, err := ParseSkip(skip, meta)
			assertBadRequest(t, err, "widget")
		}
	})
}

func TestParseSelect(t *testing.T) {
	meta := widgetMeta()

	t.Run("every declared column is selectable", func(t *testing.T) {
		for _, column := range meta.Columns {
			got, err := ParseSelect([]interface{}{column}, meta)
			require.NoError(t, err)
			assert.Equal(t, []string{column}, got)
		}
	})

	t.Run("single string is normalized to a list", func(t *testing.T) {
		got, err := ParseSelect("name", meta)
		require.NoError(t, err)
		assert.Equal(t, []string{"name"}, got)
	})

	t.Run("unknown column fails", func(t *testing.T) {
		_, err := ParseSelect([]interface{}{"name", "bogus"}, meta)
		assertBadRequest(t, err, "widget")
		assert.Contains(t, err.Error(), "'bogus'")
	})

	t.Run("non-string entries fail", func(t *testing.T) {
		_, err := ParseSelect([]interface{}{"name", float64(1)}, meta)
		assertBadRequest(t, err, "widget")

		_, err = ParseSelect(map[string]interface{}{}, meta)
		assertBadRequest(t, err, "widget")
	})
}

func TestParseWhere(t *testing.T) {
	meta := widgetMeta()

	t.Run("object shape preserved", func(t *testing.T) {
		where, err := ParseWhere(map[string]interface{}{"name": "a"}, meta)
		require.NoError(t, err)
		assert.False(t, where.IsArray)
		require.Len(t, where.Clauses, 1)
		assert.Equal(t, "a", where.Clauses[0]["name"])
	})

	t.Run("array shape preserved", func(t *testing.T) {
		where, err := ParseWhere([]interface{}{
			map[string]interface{}{"name": "a"},
			map[string]interface{}{"owner_id": float64(2)},
		}, meta)
		require.NoError(t, err)
		assert.True(t, where.IsArray)
		assert.Len(t, where.Clauses, 2)
	})

	t.Run("absent filter is empty", func(t *testing.T) {
		where, err := ParseWhere(nil, meta)
		require.NoError(t, err)
		assert.True(t, where.IsEmpty())
	})

	t.Run("unknown column fails whole parse", func(t *testing.T) {
		_, err := ParseWhere([]interface{}{
			map[string]interface{}{"name": "a"},
			map[string]interface{}{"bogus": 1},
		}, meta)
		assertBadRequest(t, err, "widget")
	})

	t.Run("non-object filters fail", func(t *testing.T) {
		_, err := ParseWhere("name = a", meta)
		assertBadRequest(t, err, "widget")

		_, err = ParseWhere([]interface{}{"name"}, meta)
		assertBadRequest(t, err, "widget")
	})
}

func TestParseRelations(t *testing.T) {
	meta := widgetMeta()

	t.Run("valid paths at every depth", func(t *testing.T) {
		for _, path := range []string{"owner", "owner.company", "owner.company.widgets", "owner.company.widgets.owner"} {
			got, err := ParseRelations(path, meta)
			require.NoError(t, err, "path %s", path)
			assert.Equal(t, []string{path}, got)
		}
	})

	t.Run("invalid intermediate step fails citing the path", func(t *testing.T) {
		_, err := ParseRelations("owner.bogus.widgets", meta)
		assertBadRequest(t, err, "widget")
		assert.Contains(t, err.Error(), "owner.bogus.widgets")
	})

	t.Run("unknown root relation fails", func(t *testing.T) {
		_, err := ParseRelations([]interface{}{"owner", "nope"}, meta)
		assertBadRequest(t, err, "widget")
	})

	t.Run("non-string entries fail", func(t *testing.T) {
		_, err := ParseRelations(float64(1), meta)
		assertBadRequest(t, err, "widget")
	})
}

func TestParse(t *testing.T) {
	meta := widgetMeta()

	t.Run("full query", func(t *testing.T) {
		raw := `{"take":"10","skip":0,"select":["id","name"],"where":[{"name":"a"},{"owner_id":2}],"relations":"owner.company"}`

		q, err := Parse(raw, meta)
		require.NoError(t, err)
		assert.Equal(t, 10, *q.Take)
		assert.Equal(t, 0, *q.Skip)
		assert.Equal(t, []string{"id", "name"}, q.Select)
		assert.True(t, q.Where.IsArray)
		assert.Equal(t, []string{"owner.company"}, q.Relations)
	})

	t.Run("deserialization failure has no namespace", func(t *testing.T) {
		_, err := Parse("{not json", meta)
		assertBadRequest(t, err, "")
		assert.Equal(t, "cannot deserialize resource query", err.Error())
	})

	t.Run("unrecognized keys are ignored", func(t *testing.T) {
		q, err := Parse(`{"order":{"id":"DESC"},"take":1}`, meta)
		require.NoError(t, err)
		assert.Equal(t, 1, *q.Take)
	})

	t.Run("empty query", func(t *testing.T) {
		q, err := Parse(`{}`, meta)
		require.NoError(t, err)
		assert.Nil(t, q.Take)
		assert.Nil(t, q.Skip)
		assert.Nil(t, q.Select)
		assert.True(t, q.Where.IsEmpty())
		assert.Nil(t, q.Relations)
	})
}
