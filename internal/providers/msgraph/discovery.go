package msgraph

import (
	"context"
	"fmt"

	"github.com/gen-mind/echo-mind/internal/checkpoint"
	"github.com/gen-mind/echo-mind/internal/logger"
)

// discoverSites lists every site in the tenant. Results seed the checkpoint
// site queue so a crash mid-enumeration never repeats discovery.
func (p *Provider) discoverSites(ctx context.Context) ([]checkpoint.SiteDescriptor, error) {
	var sites []checkpoint.SiteDescriptor
	url := "/sites?search=*"

	for url != "" {
		var resp siteListResponse
		if err := p.client.getJSON(ctx, url, &resp); err != nil {
			return nil, fmt.Errorf("list sites: %w", err)
		}
		for _, s := range resp.Value {
			sites = append(sites, checkpoint.SiteDescriptor{ID: s.ID, Name: s.Name, WebURL: s.WebURL})
		}
		url = resp.NextLink
	}

	logger.Info("discovered %d sites", len(sites))
	return sites, nil
}

// discoverDrives lists the document libraries of one site. Results seed the
// checkpoint drive queue.
func (p *Provider) discoverDrives(ctx context.Context, siteID string) ([]string, error) {
	var drives []string
	url := fmt.Sprintf("/sites/%s/drives", siteID)

	for url != "" {
		var resp driveListResponse
		if err := p.client.getJSON(ctx, url, &resp); err != nil {
			return nil, fmt.Errorf("list drives for site %s: %w", siteID, err)
		}
		for _, d := range resp.Value {
			drives = append(drives, d.ID)
		}
		url = resp.NextLink
	}

	return drives, nil
}
