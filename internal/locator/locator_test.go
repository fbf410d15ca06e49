package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocators(t *testing.T) {

	t.Run("all variants", func(t *testing.T) {
		locators, err := ParseLocators([]interface{}{
			map[string]interface{}{"rootElement": true, "searchPaths": []interface{}{"/schemas", "schemas"}},
			map[string]interface{}{"locationHint": "/maps/schemas.json"},
			map[string]interface{}{"patterns": []interface{}{
				map[string]interface{}{"pattern": "pom.xml", "path": "/schemas/pom.xsd", "useDefaultNamespace": true},
			}},
		})

		require.NoError(t, err)
		assert.Equal(t, []Locator{
			RootElement{SearchPaths: []string{"/schemas", "schemas"}},
			LocationHint{MapFilePath: "/maps/schemas.json"},
			PatternSet{Rules: []PatternRule{{Pattern: "pom.xml", SchemaPath: "/schemas/pom.xsd", UseDefaultNamespace: true}}},
		}, locators)
	})

	t.Run("initialization options object", func(t *testing.T) {
		locators, err := ParseLocators(map[string]interface{}{
			"schemaLocators": []interface{}{
				map[string]interface{}{"locationHint": "map.json"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []Locator{LocationHint{MapFilePath: "map.json"}}, locators)
	})

	t.Run("no locators", func(t *testing.T) {
		locators, err := ParseLocators(nil)
		assert.NoError(t, err)
		assert.Empty(t, locators)

		locators, err = ParseLocators(map[string]interface{}{"other": 1})
		assert.NoError(t, err)
		assert.Empty(t, locators)
	})

	t.Run("invalid entries are skipped", func(t *testing.T) {
		locators, err := DecodeLocators([]byte(`[
			{"rootElement": true},
			{"rootElement": true, "searchPaths": ["/schemas"], "locationHint": "map.json"},
			{},
			"pom.xsd",
			{"patterns": [{"pattern": "[", "path": "a.xsd"}]},
			{"patterns": [{"pattern": "*.xml"}]},
			{"locationHint": ""},
			{"rootElement": false, "searchPaths": ["/schemas"]},
			{"locationHint": "map.json"}
		]`))

		assert.ErrorIs(t, err, ErrInvalidLocator)
		assert.Equal(t, []Locator{LocationHint{MapFilePath: "map.json"}}, locators)
	})

	t.Run("not a list", func(t *testing.T) {
		_, err := DecodeLocators([]byte(`"a"`))
		assert.ErrorIs(t, err, ErrInvalidLocator)
	})
}
