// Package book builds the HTML edition of the book: it stages the asset
// directories and files into the output directory, converts every chapter
// notebook of the processing list and reports the result per chapter.
//
// A failed chapter never stops the build. Only setup problems (missing
// source directory, missing or mistyped assets, an unwritable output
// directory) abort a run, and they do so before any chapter is processed.
package book
