package models

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultSearchURL is the endpoint a new query starts with.
const DefaultSearchURL = "http://localhost:8080/search/"

// HTTPState holds the outcome of the last request submission.
type HTTPState struct {
	Loading  bool   `json:"loading"`
	Status   int    `json:"status,omitempty"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// QueryText is the textual form of the tree. Error is set when Input
// could not be turned into a tree; the tree then keeps its last good value.
type QueryText struct {
	Input string `json:"input"`
	Error string `json:"error,omitempty"`
}

// Request is the fully composed outgoing request.
type Request struct {
	Method  Method  `json:"method"`
	URL     string  `json:"url"`
	FullURL string  `json:"fullUrl"`
	Body    *string `json:"body"`
}

// QueryState is one snapshot of a query builder page. Snapshots are
// immutable; Reduce returns a new one for every action.
type QueryState struct {
	HTTP    HTTPState  `json:"http"`
	Params  *InputNode `json:"params"`
	Query   QueryText  `json:"query"`
	Request Request    `json:"request"`
}

// NewQueryState returns the initial state: a POST to DefaultSearchURL
// with an empty yql parameter.
func NewQueryState() QueryState {
	s, err := NewQueryStateFor(DefaultSearchURL)
	if err != nil {
		panic(err)
	}
	return s
}

// NewQueryStateFor returns the initial state for a given search endpoint.
func NewQueryStateFor(searchURL string) (QueryState, error) {
	root, err := addInput(NewRoot(), "", "yql")
	if err != nil {
		return QueryState{}, err
	}
	input, err := Serialize(root, MethodPost)
	if err != nil {
		return QueryState{}, err
	}
	return QueryState{
		Params:  root,
		Query:   QueryText{Input: input},
		Request: composeRequest(MethodPost, searchURL, input),
	}, nil
}

// Reduce applies a to prev and re-derives whatever depends on the fields
// the action changed. On error prev is returned unchanged.
//
// The query text is rebuilt when the tree root changed (every structural
// edit produces a new root) unless the action was SetQuery itself, or when
// the method changed. The request is recomposed when the URL, the query
// text or the method changed.
func Reduce(prev QueryState, a Action) (QueryState, error) {
	next, err := preReduce(prev, a)
	if err != nil {
		return prev, err
	}

	_, fromText := a.(SetQuery)
	methodChanged := next.Request.Method != prev.Request.Method
	if (next.Params != prev.Params && !fromText) || methodChanged {
		input, err := Serialize(next.Params, next.Request.Method)
		if err != nil {
			return prev, fmt.Errorf("serialize query: %w", err)
		}
		next.Query = QueryText{Input: input}
	}

	if next.Request.URL != prev.Request.URL || next.Query.Input != prev.Query.Input || methodChanged {
		next.Request = composeRequest(next.Request.Method, next.Request.URL, next.Query.Input)
	}
	return next, nil
}

func composeRequest(method Method, rawURL, input string) Request {
	r := Request{Method: method, URL: rawURL}
	if method == MethodGet {
		r.FullURL = replaceQuery(rawURL, input)
		return r
	}
	body := input
	r.FullURL = rawURL
	r.Body = &body
	return r
}

// replaceQuery swaps the query component of rawURL for query.
func replaceQuery(rawURL, query string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		base, _, _ := strings.Cut(rawURL, "?")
		if query == "" {
			return base
		}
		return base + "?" + query
	}
	u.RawQuery = query
	u.ForceQuery = false
	return u.String()
}
