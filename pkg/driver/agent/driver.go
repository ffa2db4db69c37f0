package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/devicelab-dev/guilocator/pkg/core"
	"github.com/devicelab-dev/guilocator/pkg/locator"
)

// Driver resolves normalized locators through a live agent.
type Driver struct {
	client *Client
}

// New creates a driver on top of an agent client.
func New(client *Client) *Driver {
	return &Driver{client: client}
}

// Client returns the underlying connection.
func (d *Driver) Client() *Client {
	return d.client
}

// Toolkit asks the agent which toolkit it is attached to.
func (d *Driver) Toolkit(ctx context.Context) (core.Toolkit, error) {
	var name string
	if err := d.client.Call(ctx, MethodToolkit, struct{}{}, &name); err != nil {
		return 0, err
	}
	return core.ParseToolkit(name)
}

// FindElements sends the normalized parameters and returns the matched
// ids in the agent's order. "Not found" is an empty result, not an error.
func (d *Driver) FindElements(ctx context.Context, loc locator.NormalizedLocator) ([]int64, error) {
	var items []json.RawMessage
	err := d.client.Call(ctx, MethodFindElements, loc.Params, &items)
	if IsNotFound(err) {
		return []int64{}, nil
	}
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(items))
	for i, item := range items {
		id, err := elementID(item)
		if err != nil {
			return nil, fmt.Errorf("findElements result %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Element fetches the current properties of one component.
func (d *Driver) Element(ctx context.Context, _ core.Toolkit, id int64) (core.ElementProperties, error) {
	var raw json.RawMessage
	params := map[string]any{"componentId": id}
	if err := d.client.Call(ctx, MethodGetElementProperties, params, &raw); err != nil {
		return core.ElementProperties{}, err
	}
	return elementProperties(raw, id)
}

// elementID accepts a bare id or an element payload keyed by hashCode, id,
// widgetId or componentId.
func elementID(raw json.RawMessage) (int64, error) {
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}

	var obj struct {
		HashCode    *int64 `json:"hashCode"`
		ID          *int64 `json:"id"`
		WidgetID    *int64 `json:"widgetId"`
		ComponentID *int64 `json:"componentId"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0, fmt.Errorf("decode element: %w", err)
	}
	for _, v := range []*int64{obj.HashCode, obj.ID, obj.WidgetID, obj.ComponentID} {
		if v != nil {
			return *v, nil
		}
	}
	return 0, fmt.Errorf("decode element: missing id")
}

// elementProperties decodes a property payload. SWT agents key elements by
// widgetId and some omit the id entirely, so it is filled in from the
// request.
func elementProperties(raw json.RawMessage, id int64) (core.ElementProperties, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return core.ElementProperties{}, fmt.Errorf("decode element %d: %w", id, err)
	}
	_, hasHash := fields["hashCode"]
	_, hasID := fields["id"]
	if !hasHash && !hasID {
		if w, ok := fields["widgetId"]; ok {
			fields["id"] = w
		} else {
			fields["id"] = json.RawMessage(fmt.Sprint(id))
		}
		data, err := json.Marshal(fields)
		if err != nil {
			return core.ElementProperties{}, err
		}
		raw = data
	}
	return core.ParseElementProperties(raw)
}
