// Package tads3ls is the analysis engine behind a TADS 3 language server. It
// turns a project makefile into per-file symbols, keyword ranges and extra
// properties that editor features (outline, definitions, references, code
// lenses) are answered from.
//
// # Pipeline
//
// [Engine.Parse] runs one pass over a project:
//
//  1. Config: the makefile (.t3m) is read into directives and the standard
//     library variant, adv3 or adv3Lite, is detected. This is memoized per
//     makefile path.
//  2. Preprocess: a [preprocess.Preprocessor] produces the preprocessed text
//     of every file the project compiles.
//  3. Order: files under the makefile's directory go first, then larger files
//     before smaller ones so the worker pool stays busy.
//  4. Cache: on the first run of a session, library files are restored from
//     the on-disk cache and skip parsing.
//  5. Dispatch: the remaining files are parsed on a bounded worker pool. Each
//     completion is merged into the shared symbol store by a single goroutine.
//  6. Finalize: after the first successful run, library results are written
//     back to the cache.
//
// # Usage
//
//	rt := runtime.NewRuntime("", runtime.WithRuntimeFS(scripts.FS))
//	parser, err := runtime.NewParser(rt, "tads3")
//	if err != nil { ... }
//
//	e := tads3ls.New(parser.Parse, preprocess.NewSourcePreprocessor(),
//		tads3ls.WithGlobalStorage(storageDir),
//		tads3ls.WithParserVersion(parser.Version()),
//	)
//	res, err := e.Parse(ctx, "game.t3m", nil)
//	syms, _ := e.Symbols().Symbols("/path/to/start.t")
//
// # Library cache
//
// Artifacts live under <storage>/.cache/<variant>/ as <base>__symbols.json
// and <base>__keywords.json. A SQLite manifest next to them records which
// file produced each artifact, a hash of its preprocessed text and the parser
// version; a mismatch turns the artifact into a miss. See [WithVerifyFreshness].
//
// # Errors
//
// [ConfigError], [PreprocessError] and [PoolError] fail a run and are reported
// through [Notifier.Failure]. A Notifier that panics fails the run with a
// [PoolError]. A failed parse of a single file and a failed
// cache read or write are logged and never fail the run.
package tads3ls
