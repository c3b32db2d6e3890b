package benchmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/vintoniuk/anadeabot/internal/conversation"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/checkpoint"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/llm"
)

type storeFactory struct {
	name string
	open func(b *testing.B) checkpoint.Store
}

var stores = []storeFactory{
	{"memory", func(*testing.B) checkpoint.Store { return checkpoint.NewMemoryStore() }},
	{"sqlite", openSQLite},
	{"redis", openRedis},
}

func openSQLite(b *testing.B) checkpoint.Store {
	b.Helper()
	store, err := checkpoint.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { store.Close() })
	return store
}

func openRedis(b *testing.B) checkpoint.Store {
	b.Helper()
	mr := miniredis.RunT(b)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b.Cleanup(func() { client.Close() })
	return checkpoint.NewRedisStore(client)
}

// BenchmarkStore_Save measures appending one turn of a long conversation.
func BenchmarkStore_Save(b *testing.B) {
	ctx := context.Background()
	data, err := json.Marshal(longConversation(50))
	if err != nil {
		b.Fatal(err)
	}
	for _, f := range stores {
		b.Run(f.name, func(b *testing.B) {
			store := f.open(b)
			b.SetBytes(int64(len(data)))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := store.Save(ctx, checkpoint.New("chat-1", i+1, data)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkStore_Load measures loading the latest turn.
func BenchmarkStore_Load(b *testing.B) {
	ctx := context.Background()
	data, err := json.Marshal(longConversation(50))
	if err != nil {
		b.Fatal(err)
	}
	for _, f := range stores {
		b.Run(f.name, func(b *testing.B) {
			store := f.open(b)
			if err := store.Save(ctx, checkpoint.New("chat-1", 1, data)); err != nil {
				b.Fatal(err)
			}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := store.Load(ctx, "chat-1"); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkInvoke measures full turns: load, merge, run and save.
func BenchmarkInvoke(b *testing.B) {
	ctx := context.Background()
	for _, f := range stores {
		b.Run(f.name, func(b *testing.B) {
			cg := mustCompile(b, buildBranchingGraph(), f.open(b))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				// A fresh conversation every 20 turns keeps state size bounded.
				id := fmt.Sprintf("chat-%d", i/20)
				if _, err := cg.Invoke(ctx, id, conversation.Say(llm.User("hi"))); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
