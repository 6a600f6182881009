// Command reposcorer runs the repository quality-scorecard pipeline: clone,
// infer domain, select files, chunk, AI-score, calibrate, serve over HTTP.
package main

func main() {
	Execute()
}
