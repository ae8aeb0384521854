// Package tokens keeps stored access tokens usable.
//
// [Manager.GetValidAccessToken] returns the stored token while it has more than [models.RefreshSkew] left and
// refreshes it otherwise. When a refresh fails the stored token is returned anyway and the failure is logged; the
// provider call that follows surfaces the problem to the caller.
//
// Refreshes for the same username share one provider call. The credential is re-read inside that call so a caller
// arriving just after a completed refresh gets the new token without spending the refresh token again.
package tokens
