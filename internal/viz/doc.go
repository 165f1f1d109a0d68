// Package viz renders recorded trials and run summaries.
//
//   - [Plot]: asciigraph terminal chart of selected CSV columns
//   - [SavePNG]: gonum/plot line chart written as a PNG file
//   - [RenderSummary]: lipgloss table of a generation run
//
// Styles in this package are shared with the live progress view.
package viz
