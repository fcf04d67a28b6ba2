// Package proc spawns a child process and captures its outcome.
//
// A run is synchronous from the caller's perspective: Run returns only after
// the child has exited (or has been killed). Exit status is data, not an
// error. Errors are reserved for situations where the child could not be
// started at all (LaunchError), was killed because its deadline expired
// (TimeoutError), or was cancelled by the caller.
//
// The child is placed in its own process group on platforms that support
// it, so cancellation terminates grandchildren too (a build tool usually
// spawns the real generator).
package proc
