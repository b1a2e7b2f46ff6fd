package inventory

import (
	"context"

	"github.com/evo-uds/cloudsweep/pkg/engine/awsapi"
)

// Baseline defaults applied when the provider omits a field. The cheapest
// tier is assumed so cost estimates never overstate.
const (
	defaultVolumeType    = "standard"
	defaultInstanceClass = "t3.micro"
)

type describeVolumesResponse struct {
	Volumes []struct {
		VolumeID    string `xml:"volumeId"`
		Size        int    `xml:"size"`
		VolumeType  string `xml:"volumeType"`
		Status      string `xml:"status"`
		CreateTime  string `xml:"createTime"`
		Tags        []tag  `xml:"tagSet>item"`
		Attachments []struct {
			InstanceID string `xml:"instanceId"`
		} `xml:"attachmentSet>item"`
	} `xml:"volumeSet>item"`
}

// Volumes enumerates block storage volumes in one region.
func Volumes(ctx context.Context, api *awsapi.Client, region string) ([]Descriptor, error) {
	var resp describeVolumesResponse
	if err := api.QueryXML(ctx, region, awsapi.ServiceEC2, "DescribeVolumes", nil, &resp); err != nil {
		return nil, &EnumerationError{Kind: KindVolume, Region: region, Err: err}
	}

	out := make([]Descriptor, 0, len(resp.Volumes))
	for _, v := range resp.Volumes {
		if v.VolumeID == "" {
			continue
		}
		volType := v.VolumeType
		if volType == "" {
			volType = defaultVolumeType
		}
		attrs := map[string]any{
			"state":       v.Status,
			"size_gb":     v.Size,
			"volume_type": volType,
			"created":     parseTime(v.CreateTime),
			"attached":    len(v.Attachments) > 0,
		}
		if len(v.Attachments) > 0 {
			attrs["instance_id"] = v.Attachments[0].InstanceID
		}
		out = append(out, Descriptor{
			Kind:   KindVolume,
			ID:     v.VolumeID,
			Name:   nameFromTags(v.Tags),
			Region: region,
			Attrs:  attrs,
		})
	}
	return out, nil
}

type describeSnapshotsResponse struct {
	Snapshots []struct {
		SnapshotID  string `xml:"snapshotId"`
		VolumeSize  int    `xml:"volumeSize"`
		StartTime   string `xml:"startTime"`
		Description string `xml:"description"`
		Tags        []tag  `xml:"tagSet>item"`
	} `xml:"snapshotSet>item"`
}

// Snapshots enumerates owned volume snapshots in one region.
func Snapshots(ctx context.Context, api *awsapi.Client, region string) ([]Descriptor, error) {
	params := map[string]string{"Owner.1": "self"}
	var resp describeSnapshotsResponse
	if err := api.QueryXML(ctx, region, awsapi.ServiceEC2, "DescribeSnapshots", params, &resp); err != nil {
		return nil, &EnumerationError{Kind: KindSnapshot, Region: region, Err: err}
	}

	out := make([]Descriptor, 0, len(resp.Snapshots))
	for _, s := range resp.Snapshots {
		if s.SnapshotID == "" {
			continue
		}
		out = append(out, Descriptor{
			Kind:   KindSnapshot,
			ID:     s.SnapshotID,
			Name:   nameFromTags(s.Tags),
			Region: region,
			Attrs: map[string]any{
				"size_gb":     s.VolumeSize,
				"created":     parseTime(s.StartTime),
				"description": s.Description,
			},
		})
	}
	return out, nil
}

type describeAddressesResponse struct {
	Addresses []struct {
		PublicIP           string `xml:"publicIp"`
		AllocationID       string `xml:"allocationId"`
		InstanceID         string `xml:"instanceId"`
		NetworkInterfaceID string `xml:"networkInterfaceId"`
		Tags               []tag  `xml:"tagSet>item"`
	} `xml:"addressesSet>item"`
}

// Addresses enumerates elastic IP allocations in one region.
func Addresses(ctx context.Context, api *awsapi.Client, region string) ([]Descriptor, error) {
	var resp describeAddressesResponse
	if err := api.QueryXML(ctx, region, awsapi.ServiceEC2, "DescribeAddresses", nil, &resp); err != nil {
		return nil, &EnumerationError{Kind: KindAddress, Region: region, Err: err}
	}

	out := make([]Descriptor, 0, len(resp.Addresses))
	for _, a := range resp.Addresses {
		id := a.AllocationID
		if id == "" {
			// EC2-Classic addresses have no allocation ID.
			id = a.PublicIP
		}
		if id == "" {
			continue
		}
		out = append(out, Descriptor{
			Kind:   KindAddress,
			ID:     id,
			Name:   nameFromTags(a.Tags),
			Region: region,
			Attrs: map[string]any{
				"public_ip":            a.PublicIP,
				"instance_id":          a.InstanceID,
				"network_interface_id": a.NetworkInterfaceID,
			},
		})
	}
	return out, nil
}

type describeInstancesResponse struct {
	Reservations []struct {
		Instances []struct {
			InstanceID   string `xml:"instanceId"`
			InstanceType string `xml:"instanceType"`
			LaunchTime   string `xml:"launchTime"`
			State        struct {
				Name string `xml:"name"`
			} `xml:"instanceState"`
			Tags []tag `xml:"tagSet>item"`
		} `xml:"instancesSet>item"`
	} `xml:"reservationSet>item"`
}

// Instances enumerates running compute instances in one region. Stopped
// instances are skipped: they accrue no compute cost and volume waste is
// covered by the volume pipeline.
func Instances(ctx context.Context, api *awsapi.Client, region string) ([]Descriptor, error) {
	var resp describeInstancesResponse
	if err := api.QueryXML(ctx, region, awsapi.ServiceEC2, "DescribeInstances", nil, &resp); err != nil {
		return nil, &EnumerationError{Kind: KindInstance, Region: region, Err: err}
	}

	var out []Descriptor
	for _, r := range resp.Reservations {
		for _, i := range r.Instances {
			if i.InstanceID == "" || i.State.Name != "running" {
				continue
			}
			class := i.InstanceType
			if class == "" {
				class = defaultInstanceClass
			}
			out = append(out, Descriptor{
				Kind:   KindInstance,
				ID:     i.InstanceID,
				Name:   nameFromTags(i.Tags),
				Region: region,
				Attrs: map[string]any{
					"state":          i.State.Name,
					"instance_class": class,
					"launched":       parseTime(i.LaunchTime),
				},
			})
		}
	}
	return out, nil
}

type describeImagesResponse struct {
	Images []struct {
		ImageID      string `xml:"imageId"`
		Name         string `xml:"name"`
		State        string `xml:"imageState"`
		CreationDate string `xml:"creationDate"`
		Tags         []tag  `xml:"tagSet>item"`
	} `xml:"imagesSet>item"`
}

// Images enumerates owned machine images in one region.
func Images(ctx context.Context, api *awsapi.Client, region string) ([]Descriptor, error) {
	params := map[string]string{"Owner.1": "self"}
	var resp describeImagesResponse
	if err := api.QueryXML(ctx, region, awsapi.ServiceEC2, "DescribeImages", params, &resp); err != nil {
		return nil, &EnumerationError{Kind: KindImage, Region: region, Err: err}
	}

	out := make([]Descriptor, 0, len(resp.Images))
	for _, img := range resp.Images {
		if img.ImageID == "" {
			continue
		}
		name := nameFromTags(img.Tags)
		if name == "" {
			name = img.Name
		}
		out = append(out, Descriptor{
			Kind:   KindImage,
			ID:     img.ImageID,
			Name:   name,
			Region: region,
			Attrs: map[string]any{
				"state":   img.State,
				"created": parseTime(img.CreationDate),
			},
		})
	}
	return out, nil
}

type describeNatGatewaysResponse struct {
	Gateways []struct {
		NatGatewayID string `xml:"natGatewayId"`
		State        string `xml:"state"`
		CreateTime   string `xml:"createTime"`
		Tags         []tag  `xml:"tagSet>item"`
	} `xml:"natGatewaySet>item"`
}

// Gateways enumerates NAT gateways in one region.
func Gateways(ctx context.Context, api *awsapi.Client, region string) ([]Descriptor, error) {
	var resp describeNatGatewaysResponse
	if err := api.QueryXML(ctx, region, awsapi.ServiceEC2, "DescribeNatGateways", nil, &resp); err != nil {
		return nil, &EnumerationError{Kind: KindGateway, Region: region, Err: err}
	}

	var out []Descriptor
	for _, g := range resp.Gateways {
		if g.NatGatewayID == "" || g.State == "deleted" || g.State == "deleting" {
			continue
		}
		out = append(out, Descriptor{
			Kind:   KindGateway,
			ID:     g.NatGatewayID,
			Name:   nameFromTags(g.Tags),
			Region: region,
			Attrs: map[string]any{
				"state":   g.State,
				"created": parseTime(g.CreateTime),
			},
		})
	}
	return out, nil
}
