// Package internal holds the packages behind the estatico command.
//
//   - registry: tasks, their dependency graph and execution
//   - tasks: the build tasks (html, css, js, iconfont, ...) and the
//     composite tasks chaining them
//   - pipeline: the read, transform, write stages tasks are built from
//   - glob: include/exclude pattern sets
//   - watcher: the change-watch loop triggering tasks on file changes
//   - server: the development server with live reload
//   - inspector: module highlighting for rendered pages
//   - config, errors, logging, process, validation, version: shared plumbing
package internal
