// Package registry provides a generic thread-safe registry for values
// indexed by key.
//
// Registry keeps keys in registration order, so anything listed from it
// (tool definitions sent to a model, for instance) is deterministic.
//
// # Basic Usage
//
//	tools := registry.New[string, Tool]()
//	tools.Register("get_size_options", sizeTool)
//	tools.Register("get_color_options", colorTool)
//
//	tool, ok := tools.Get("get_size_options")
//	all := tools.Values() // sizeTool, colorTool
//
// # Lazy Initialization
//
// GetOrCreate is atomic: the factory is called at most once per key, even
// under concurrent access. It suits per-key resources that live as long as
// the registry, such as one client per provider:
//
//	clients := registry.New[string, *Client]()
//	c := clients.GetOrCreate(provider, func() *Client {
//	    return NewClient(provider)
//	})
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. Range iterates over a
// snapshot, so the callback may register or delete entries.
package registry
