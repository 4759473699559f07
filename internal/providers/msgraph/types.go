package msgraph

import "time"

// Wire structures mirroring the subset of Graph responses this provider
// consumes. OData annotation keys keep their upstream names.

type siteResponse struct {
	ID     string `json:"id"`
	Name   string `json:"displayName"`
	WebURL string `json:"webUrl"`
}

type siteListResponse struct {
	Value    []siteResponse `json:"value"`
	NextLink string         `json:"@odata.nextLink"`
}

type driveResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type driveListResponse struct {
	Value    []driveResponse `json:"value"`
	NextLink string          `json:"@odata.nextLink"`
}

type driveItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	WebURL string `json:"webUrl"`

	// ETag changes on any touch; CTag only when content changes. CTag is
	// the fingerprint carried downstream so metadata-only updates do not
	// look like content updates.
	ETag string `json:"eTag"`
	CTag string `json:"cTag"`

	CreatedAt  time.Time `json:"createdDateTime"`
	ModifiedAt time.Time `json:"lastModifiedDateTime"`

	File *struct {
		MimeType string `json:"mimeType"`
	} `json:"file"`
	Folder  *struct{} `json:"folder"`
	Deleted *struct {
		State string `json:"state"`
	} `json:"deleted"`

	ParentReference *struct {
		ID      string `json:"id"`
		DriveID string `json:"driveId"`
		Path    string `json:"path"`
	} `json:"parentReference"`
}

type deltaResponse struct {
	Value     []driveItem `json:"value"`
	NextLink  string      `json:"@odata.nextLink"`
	DeltaLink string      `json:"@odata.deltaLink"`
}

type permissionResponse struct {
	Link *struct {
		Scope string `json:"scope"`
	} `json:"link"`
	GrantedToV2 *struct {
		User *struct {
			Email string `json:"email"`
		} `json:"user"`
		Group *struct {
			ID string `json:"id"`
		} `json:"group"`
	} `json:"grantedToV2"`
}

type permissionListResponse struct {
	Value    []permissionResponse `json:"value"`
	NextLink string               `json:"@odata.nextLink"`
}
