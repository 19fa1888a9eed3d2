// Package testing provides the conformance suite for kv.IKVStore implementations.
//
// Usage:
//
//	func TestStore(t *testing.T) {
//		kvtesting.RunKVStoreTests(t, "memkv", func(t *testing.T) kv.IKVStore {
//			return memkv.NewStore(nil)
//		})
//	}
package testing
