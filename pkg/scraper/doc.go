// Package scraper ties the pieces of a run together.
//
// A Scraper owns the messaging client, the output tree and the pacing of
// requests. It exposes the three things a user asks for:
//
//   - ListConversations prints the conversation directory
//   - Dump writes the full history of conversations as JSON
//   - Parse classifies histories, from dumps or live, into text reports and
//     optionally downloads their attachments
//
// Usage:
//
//	data, err := auth.ParseRequestData(raw)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	s, err := scraper.New(cfg, data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	results, err := s.Parse(ctx, scraper.ParseOptions{
//	    Inputs:     []string{"output/42 - Ada/complete.json"},
//	    Categories: classifier.AllCategories,
//	    Mode:       classifier.ModeDownload,
//	})
//
// The directory of conversations is crawled once per Scraper and reused by
// every later call.
package scraper
