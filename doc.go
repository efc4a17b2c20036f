// Package semindex is an embedded semantic indexing and search engine for
// text documents.
//
// Documents are split into overlapping chunks, embedded into fixed-dimension
// vectors by a pluggable backend, and searched by cosine similarity. A store
// is append-only and can be persisted to a small set of artifact files and
// reopened later with the same backend.
//
// Basic usage:
//
//	provider, err := embedding.NewProvider(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	store, err := semindex.New(provider)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ids, err := store.Add(ctx, []semindex.Document{
//		{Text: "hello world", SourceDocID: "meeting-1"},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	hits, err := store.Search(ctx, "hello", 3)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, hit := range hits {
//		fmt.Println(hit.ID, hit.Score, hit.Meta.SourceDocID)
//	}
package semindex
