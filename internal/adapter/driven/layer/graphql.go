package layer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/evanhartley/genforge/internal/domain/fault"
)

const createInferenceMutation = `mutation CreateInference($input: CreateInferenceInput!) {
	createInference(input: $input) {
		... on Inference {
			id
			status
			createdAt
		}
		... on Error {
			message
		}
	}
}`

const inferencesByIDQuery = `query GetInferencesById($input: GetInferencesByIdInput!) {
	getInferencesById(input: $input) {
		... on InferencesResult {
			inferences {
				id
				status
				files {
					id
					url
					name
				}
			}
		}
		... on Error {
			message
		}
	}
}`

const generatePromptMutation = `mutation GeneratePrompt($input: GeneratePromptInput!) {
	generatePrompt(input: $input) {
		... on StringResponse {
			value
		}
		... on Error {
			message
		}
	}
}`

const myUserQuery = `query GetMyUser {
	getMyUser {
		... on User {
			id
			email
			personalWorkspace {
				id
				name
			}
			memberships {
				edges {
					node {
						workspace {
							id
							name
						}
					}
				}
			}
		}
		... on Error {
			message
		}
	}
}`

const createUploadUrlsMutation = `mutation CreateUploadUrls($input: CreateUploadUrlsInput!) {
	createUploadUrls(input: $input) {
		... on UploadUrls {
			uploadUrls {
				url
				fileId
			}
		}
		... on Error {
			message
		}
	}
}`

// graphqlRequest is the JSON body sent to the generation API.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// graphqlEnvelope is the outer response shape. Data stays raw so each
// operation decodes its own payload after the shared checks pass.
type graphqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// remoteError is the Error union member every operation can return in place
// of its payload.
type remoteError struct {
	Message string `json:"message"`
}

// do issues one authenticated GraphQL POST and decodes the data envelope
// into out. Every failure is classified into the fault taxonomy before it
// leaves this method; callers above never inspect HTTP details.
func (c *Client) do(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create graphql request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cred.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fault.Wrap(fault.KindCancelled, "request cancelled", ctx.Err())
		}
		return classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if f := classifyStatus(resp); f != nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return f
	}

	var env graphqlEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		f := fault.Wrap(fault.KindMalformed, "response is not valid JSON", err)
		f.Delivered = true
		return f
	}

	if len(env.Errors) > 0 {
		return classifyRemoteMessage(env.Errors[0].Message)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		f := fault.New(fault.KindMalformed, "response has no data and no errors")
		f.Delivered = true
		return f
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		f := fault.Wrap(fault.KindMalformed, "data payload does not match expected shape", err)
		f.Delivered = true
		return f
	}
	return nil
}

// classifyTransportError maps a client-side request failure. Delivered is
// the load-bearing bit: a dial or DNS failure provably never reached the
// service, so a submission behind it is safe to retry; anything later may
// have landed.
func classifyTransportError(err error) *fault.Fault {
	f := fault.Wrap(fault.KindUnavailable, "generation api unreachable", err)
	f.Delivered = true

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		f.Delivered = false
		return f
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		f.Delivered = false
	}
	return f
}

// classifyStatus maps non-200 responses. Returns nil for 200.
func classifyStatus(resp *http.Response) *fault.Fault {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		f := fault.Newf(fault.KindAuthRejected, "generation api rejected credentials (HTTP %d)", resp.StatusCode)
		f.Remediation = "run `genforge rotate` with a fresh token"
		f.Delivered = true
		return f
	case resp.StatusCode == http.StatusTooManyRequests:
		f := fault.New(fault.KindRateLimited, "generation api rate limit hit")
		f.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		f.Delivered = true
		return f
	case resp.StatusCode >= 500:
		f := fault.Newf(fault.KindUnavailable, "generation api returned HTTP %d", resp.StatusCode)
		f.Delivered = true
		return f
	default:
		f := fault.Newf(fault.KindRejected, "generation api refused the request (HTTP %d)", resp.StatusCode)
		f.Delivered = true
		return f
	}
}

// classifyRemoteMessage maps a GraphQL-level error message. Auth failures
// surface here as 200s with an error body, so the message text is the only
// signal available.
func classifyRemoteMessage(message string) *fault.Fault {
	lower := strings.ToLower(message)
	for _, marker := range []string{"unauthorized", "unauthenticated", "forbidden", "invalid token", "access denied"} {
		if strings.Contains(lower, marker) {
			f := fault.Newf(fault.KindAuthRejected, "generation api rejected credentials: %s", message)
			f.Remediation = "run `genforge rotate` with a fresh token"
			f.Delivered = true
			return f
		}
	}
	f := fault.Newf(fault.KindRejected, "generation api refused the request: %s", message)
	f.Delivered = true
	return f
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms. Returns
// zero when the header is absent or unparseable.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
