// Package main provides the pagehook CLI.
//
// pagehook applies the client-side rewriting hooks to real pages, either as a
// preview server or over local files.
//
// Usage:
//
//	pagehook serve --addr :8081
//	pagehook rewrite --base https://example.com/ page.html
//	pagehook decode /p/aHR0cHM6Ly9leGFtcGxlLmNvbS8
//	pagehook sweep --base https://example.com/ --out rewritten/ *.html
package main

func main() {
	Execute()
}
