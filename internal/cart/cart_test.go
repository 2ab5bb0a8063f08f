package cart

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethanokamura/catmat/internal/domain"
)

func mat(id string, price int64) domain.Product {
	return domain.Product{ID: id, Slug: id, Name: "Mat " + id, Price: price, Images: []string{"https://img/" + id}}
}

func TestAddMergesDuplicates(t *testing.T) {
	c := New()
	c.Add(mat("a", 2500), 1)
	c.Add(mat("b", 1000), 2)
	c.Add(mat("a", 2500), 2)

	require.Equal(t, 2, c.Len())
	items := c.Items()
	assert.Equal(t, "a", items[0].ProductID)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, "b", items[1].ProductID)
	assert.Equal(t, 5, c.ItemCount())
	assert.Equal(t, int64(3*2500+2*1000), c.Total())
}

func TestAddTreatsNonPositiveQuantityAsOne(t *testing.T) {
	c := New()
	c.Add(mat("a", 100), 0)
	c.Add(mat("b", 100), -4)

	assert.Equal(t, 2, c.ItemCount())
}

func TestUpdateQuantity(t *testing.T) {
	c := New()
	c.Add(mat("a", 100), 1)
	c.Add(mat("b", 300), 1)

	c.UpdateQuantity("a", 4)
	assert.Equal(t, int64(700), c.Total())

	c.UpdateQuantity("a", 0)
	require.Equal(t, 1, c.Len())
	assert.Equal(t, "b", c.Items()[0].ProductID)

	c.UpdateQuantity("missing", 3)
	assert.Equal(t, 1, c.Len())
}

func TestRemoveAndClear(t *testing.T) {
	c := New()
	c.Add(mat("a", 100), 1)
	c.Add(mat("b", 100), 1)
	c.Add(mat("c", 100), 1)

	c.Remove("b")
	ids := []string{}
	for _, item := range c.Items() {
		ids = append(ids, item.ProductID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)

	c.Remove("zzz")
	assert.Equal(t, 2, c.Len())

	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.Zero(t, c.Total())
	assert.Zero(t, c.ItemCount())
}

func TestItemsReturnsCopy(t *testing.T) {
	c := New()
	c.Add(mat("a", 100), 1)

	items := c.Items()
	items[0].Quantity = 99

	assert.Equal(t, 1, c.ItemCount())
}

func TestFromItemsMergesAndSkipsBlankIDs(t *testing.T) {
	c, err := FromItems([]domain.CartItem{
		{ProductID: "a", Product: mat("a", 100), Quantity: 2},
		{ProductID: "", Product: domain.Product{Name: "ghost"}, Quantity: 1},
		{Product: mat("b", 200), Quantity: 1},
		{ProductID: "a", Product: mat("a", 100), Quantity: 1},
	})
	require.NoError(t, err)

	require.Equal(t, 2, c.Len())
	assert.Equal(t, 3, c.Items()[0].Quantity)
	assert.Equal(t, "b", c.Items()[1].ProductID)
}

func TestFromItemsRejectsConflictingPrices(t *testing.T) {
	_, err := FromItems([]domain.CartItem{
		{ProductID: "a", Product: mat("a", 3900), Quantity: 1},
		{ProductID: "a", Product: mat("a", 100), Quantity: 5},
	})
	require.ErrorIs(t, err, ErrConflictingPrice)
}

func TestMarshalUsesStorageEnvelope(t *testing.T) {
	c := New()
	c.Add(mat("a", 2500), 2)

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.EqualValues(t, 0, raw["version"])

	state, ok := raw["state"].(map[string]any)
	require.True(t, ok)
	items, ok := state["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)

	first := items[0].(map[string]any)
	assert.Equal(t, "a", first["productId"])
	assert.EqualValues(t, 2, first["quantity"])
	product := first["product"].(map[string]any)
	assert.EqualValues(t, 2500, product["price"])
}

func TestUnmarshalDropsInvalidEntries(t *testing.T) {
	payload := `{"state":{"items":[
		{"productId":"a","product":{"id":"a","name":"A","price":1200,"images":[],"dimensions":{"width":24,"height":36,"thickness":0.1,"unit":"in"}},"quantity":1},
		{"productId":"","product":{"id":"","name":"blank","price":100},"quantity":3},
		{"productId":"b","product":{"id":"b","name":"B","price":800},"quantity":0},
		{"productId":"a","product":{"id":"a","name":"A","price":1200},"quantity":2}
	]},"version":0}`

	c, err := Unmarshal([]byte(payload))
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	item := c.Items()[0]
	assert.Equal(t, 3, item.Quantity)
	assert.Equal(t, domain.UnitInches, item.Product.Dimensions.Unit)
	assert.Equal(t, int64(3600), c.Total())
}

func TestRoundTripPreservesOrder(t *testing.T) {
	c := New()
	c.Add(mat("z", 10), 1)
	c.Add(mat("a", 20), 2)

	data, err := c.MarshalJSON()
	require.NoError(t, err)

	restored, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, c.Items(), restored.Items())
}

func TestUnmarshalRejectsMalformedJSON(t *testing.T) {
	_, err := Unmarshal([]byte(`{"state":`))
	require.Error(t, err)
}
