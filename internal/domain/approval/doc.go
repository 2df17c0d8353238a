// Package approval models the cross-actor request/response workflow: one actor
// raises a financial request, its recipient answers it exactly once.
package approval
