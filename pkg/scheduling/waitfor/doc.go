// Package waitfor runs several coroutines concurrently on one event loop and
// collects their outcomes.
//
// By default the group fails fast with the first member error and cancels
// whatever is still running when the caller stops waiting:
//
//	results, err := waitfor.Wait(t, []eventloop.Coroutine{fetchUser, fetchOrders})
//
// Use RaiseFirst(false) to collect every outcome in order instead, and
// CancelOnFinish(false) to let members outlive the wait.
package waitfor
