// Package api defines the request-issuing capability the storesync core is
// built on, the error taxonomy every remote failure is classified into, and a
// plain net/http implementation of the capability.
//
// Taxonomy:
//
//	KindNetwork     transport failure, no response
//	KindAuth        401
//	KindValidation  any other 4xx
//	KindServer      5xx
//
// Use errors.Is against ErrNetwork, ErrAuth, ErrValidation or ErrServer to
// classify a wrapped *Error.
package api
