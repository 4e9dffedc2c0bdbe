package api

// FixRequest is the body of POST /fix. Both fields are required; empty
// strings are accepted.
type FixRequest struct {
	JenkinsLogs *string `json:"jenkins_logs"`
	DiffJSON    *string `json:"diff_json"`
	ChunkIndex  *int    `json:"chunk_index,omitempty"`
}

// FixResponse is the answer of POST /fix.
type FixResponse struct {
	Correction string `json:"correction"`
}

// CommitFixRequest is the body of POST /fix/commit.
type CommitFixRequest struct {
	JobName     *string `json:"job_name"`
	BuildNumber *string `json:"build_number"`
	RepoOwner   *string `json:"repo_owner"`
	RepoName    *string `json:"repo_name"`
	CommitSHA   *string `json:"commit_sha"`
	ChunkIndex  *int    `json:"chunk_index,omitempty"`
}

// CommitFixResponse is the answer of POST /fix/commit. Chunk metadata lets the
// caller request the next part of a large diff.
type CommitFixResponse struct {
	Correction string `json:"correction"`
	Chunk      int    `json:"chunk"`
	Total      int    `json:"total"`
	IsLast     bool   `json:"is_last"`
}

// HealthResponse is the answer of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}
