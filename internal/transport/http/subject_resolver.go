// Copyright 2026 The TrustGate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import "net/http"

// HeaderSubjectResolver trusts subject headers injected by a fronting login
// collaborator. The deployment must strip these headers from external
// traffic; this resolver is the default contract between the login plane
// and the core.
type HeaderSubjectResolver struct {
	SubjectHeader string
	MFAHeader     string
}

// NewHeaderSubjectResolver creates a resolver with the default header names
func NewHeaderSubjectResolver() *HeaderSubjectResolver {
	return &HeaderSubjectResolver{
		SubjectHeader: "X-Authenticated-Subject",
		MFAHeader:     "X-MFA-Verified",
	}
}

// Resolve reads the authenticated subject from the request headers
func (r *HeaderSubjectResolver) Resolve(req *http.Request) (*Subject, error) {
	userID := req.Header.Get(r.SubjectHeader)
	if userID == "" {
		return nil, nil
	}
	return &Subject{
		UserID:      userID,
		MFAVerified: req.Header.Get(r.MFAHeader) == "true",
	}, nil
}
