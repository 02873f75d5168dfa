// Package ocr turns recognized text into overlay candidates. Engines (a local
// Tesseract, a remote service) plug in behind Engine; the editor only consumes
// the page-space Candidates they yield and never depends on their accuracy.
package ocr
