package operations

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/morezero/backup-assistant/pkg/awsapi"
	"github.com/morezero/backup-assistant/pkg/capability"
)

const serviceEC2 = "ec2"

// ec2Selection picks the resources of a describe call. A selection with none set
// matches nothing, e.g. when a lookup of the related resources came back empty.
type ec2Selection struct {
	ids     []string
	filters []types.Filter
	none    bool
}

// ec2Query derives the selection from the request.
type ec2Query func(ctx context.Context, req *capability.Request) (ec2Selection, error)

func all(context.Context, *capability.Request) (ec2Selection, error) {
	return ec2Selection{}, nil
}

func byIDs(key string) ec2Query {
	return func(_ context.Context, req *capability.Request) (ec2Selection, error) {
		return ec2Selection{ids: req.Payload.Strings(key)}, nil
	}
}

func byFilter(name, key string) ec2Query {
	return func(_ context.Context, req *capability.Request) (ec2Selection, error) {
		return filterOn(name, req.Payload.Strings(key)), nil
	}
}

func byTag(k tagKeys) ec2Query {
	return func(_ context.Context, req *capability.Request) (ec2Selection, error) {
		f := k.filter(req.Payload)
		return filterOn("tag:"+f.name, f.values), nil
	}
}

func filterOn(name string, values []string) ec2Selection {
	if len(values) == 0 {
		return ec2Selection{none: true}
	}
	return ec2Selection{filters: []types.Filter{{Name: aws.String(name), Values: values}}}
}

func listOf(key, what string) []capability.Requirement {
	return []capability.Requirement{capability.Need(key, what+" are missing. Provide them as a comma separated list.")}
}

type ec2Ops struct {
	c Clients
}

// attachedTo selects the volumes attached to the instances chosen by q.
func (e ec2Ops) attachedTo(q ec2Query) ec2Query {
	return func(ctx context.Context, req *capability.Request) (ec2Selection, error) {
		sel, err := q(ctx, req)
		if err != nil {
			return ec2Selection{}, err
		}
		ids, err := e.instanceIDs(ctx, req.Region, sel)
		if err != nil {
			return ec2Selection{}, err
		}
		return filterOn("attachment.instance-id", ids), nil
	}
}

// ofVolumes selects the snapshots taken of the volumes chosen by q.
func (e ec2Ops) ofVolumes(q ec2Query) ec2Query {
	return func(ctx context.Context, req *capability.Request) (ec2Selection, error) {
		sel, err := q(ctx, req)
		if err != nil {
			return ec2Selection{}, err
		}
		ids, err := e.volumeIDs(ctx, req.Region, sel)
		if err != nil {
			return ec2Selection{}, err
		}
		return filterOn("volume-id", ids), nil
	}
}

func (e ec2Ops) instanceIDs(ctx context.Context, region string, sel ec2Selection) ([]string, error) {
	if sel.none {
		return nil, nil
	}
	client, err := e.c.EC2(ctx, region)
	if err != nil {
		return nil, err
	}
	var ids []string
	pages := ec2.NewDescribeInstancesPaginator(client, &ec2.DescribeInstancesInput{InstanceIds: sel.ids, Filters: sel.filters})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range page.Reservations {
			for _, in := range r.Instances {
				ids = append(ids, aws.ToString(in.InstanceId))
			}
		}
	}
	return ids, nil
}

func (e ec2Ops) volumeIDs(ctx context.Context, region string, sel ec2Selection) ([]string, error) {
	if sel.none {
		return nil, nil
	}
	client, err := e.c.EC2(ctx, region)
	if err != nil {
		return nil, err
	}
	var ids []string
	pages := ec2.NewDescribeVolumesPaginator(client, &ec2.DescribeVolumesInput{VolumeIds: sel.ids, Filters: sel.filters})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, v := range page.Volumes {
			ids = append(ids, aws.ToString(v.VolumeId))
		}
	}
	return ids, nil
}

func (e ec2Ops) instances(q ec2Query) capability.ExecuteFunc {
	return func(ctx context.Context, req *capability.Request) (capability.Payload, error) {
		sel, err := q(ctx, req)
		if err != nil {
			return nil, err
		}
		list := []types.Instance{}
		if sel.none {
			return result(map[string]any{"Instances": list}, nil)
		}
		in := &ec2.DescribeInstancesInput{InstanceIds: sel.ids, Filters: sel.filters}
		if sel.ids == nil {
			in.MaxResults = int32Of(req.Payload, "MaxResults")
		}
		out, err := invoke(ctx, req.Region, e.c.EC2, awsapi.EC2API.DescribeInstances, in)
		if err != nil {
			return nil, err
		}
		for _, r := range out.Reservations {
			list = append(list, r.Instances...)
		}
		return result(map[string]any{"Instances": list}, nil)
	}
}

func (e ec2Ops) volumes(q ec2Query) capability.ExecuteFunc {
	return func(ctx context.Context, req *capability.Request) (capability.Payload, error) {
		sel, err := q(ctx, req)
		if err != nil {
			return nil, err
		}
		if sel.none {
			return result(map[string]any{"Volumes": []types.Volume{}}, nil)
		}
		in := &ec2.DescribeVolumesInput{VolumeIds: sel.ids, Filters: sel.filters}
		if sel.ids == nil {
			in.MaxResults = int32Of(req.Payload, "MaxResults")
		}
		out, err := invoke(ctx, req.Region, e.c.EC2, awsapi.EC2API.DescribeVolumes, in)
		if err != nil {
			return nil, err
		}
		return result(map[string]any{"Volumes": out.Volumes}, nil)
	}
}

func (e ec2Ops) snapshots(q ec2Query) capability.ExecuteFunc {
	return func(ctx context.Context, req *capability.Request) (capability.Payload, error) {
		sel, err := q(ctx, req)
		if err != nil {
			return nil, err
		}
		if sel.none {
			return result(map[string]any{"Snapshots": []types.Snapshot{}}, nil)
		}
		in := &ec2.DescribeSnapshotsInput{SnapshotIds: sel.ids, Filters: sel.filters, OwnerIds: []string{"self"}}
		if sel.ids == nil {
			in.MaxResults = int32Of(req.Payload, "MaxResults")
		}
		out, err := invoke(ctx, req.Region, e.c.EC2, awsapi.EC2API.DescribeSnapshots, in)
		if err != nil {
			return nil, err
		}
		return result(map[string]any{"Snapshots": out.Snapshots}, nil)
	}
}

// lookup declares a custom describe operation. Its Execute chains helper queries, so
// failures are reported without a payload repair.
func lookup(name, label, resultKey string, requires []capability.Requirement, exec capability.ExecuteFunc) *capability.Operation {
	return &capability.Operation{
		Name:      name,
		Custom:    true,
		NoRepair:  true,
		PageKey:   "MaxResults",
		Requires:  requires,
		Label:     label,
		ResultKey: resultKey,
		Execute:   exec,
	}
}

// unpaged drops the result limit of a lookup by ids, which returns exactly the
// requested resources.
func unpaged(op *capability.Operation) *capability.Operation {
	op.PageKey = ""
	return op
}

func ec2Operations(c Clients) []*capability.Operation {
	e := ec2Ops{c: c}
	instanceNames := byFilter("tag:Name", "InstanceNames")
	volumeNames := byFilter("tag:Name", "VolumeNames")
	attachedToIDs := byFilter("attachment.instance-id", "InstanceIds")

	ops := []*capability.Operation{
		lookup("describe_instances_for_all_instances", "List of EC2 instances", "Instances", nil,
			e.instances(all)),
		unpaged(lookup("describe_instances_for_instance_ids", `EC2 instances "{InstanceIds}"`, "Instances",
			listOf("InstanceIds", "Instance ids"), e.instances(byIDs("InstanceIds")))),
		lookup("describe_instances_for_instance_names", `EC2 instances named "{InstanceNames}"`, "Instances",
			listOf("InstanceNames", "Instance names"), e.instances(instanceNames)),
		lookup("describe_instances_for_instance_tags", instanceTags.label("EC2 instances"), "Instances",
			instanceTags.requirements(), e.instances(byTag(instanceTags))),

		lookup("describe_volumes_for_all_volumes", "List of EBS volumes", "Volumes", nil,
			e.volumes(all)),
		unpaged(lookup("describe_volumes_for_volume_ids", `EBS volumes "{VolumeIds}"`, "Volumes",
			listOf("VolumeIds", "Volume ids"), e.volumes(byIDs("VolumeIds")))),
		lookup("describe_volumes_for_volume_names", `EBS volumes named "{VolumeNames}"`, "Volumes",
			listOf("VolumeNames", "Volume names"), e.volumes(volumeNames)),
		lookup("describe_volumes_for_volume_tags", volumeTags.label("EBS volumes"), "Volumes",
			volumeTags.requirements(), e.volumes(byTag(volumeTags))),
		lookup("describe_volumes_for_instance_ids", `EBS volumes attached to instances "{InstanceIds}"`, "Volumes",
			listOf("InstanceIds", "Instance ids"), e.volumes(attachedToIDs)),
		lookup("describe_volumes_for_instance_names", `EBS volumes attached to instances named "{InstanceNames}"`, "Volumes",
			listOf("InstanceNames", "Instance names"), e.volumes(e.attachedTo(instanceNames))),
		lookup("describe_volumes_for_instance_tags", instanceTags.label("EBS volumes attached to instances"), "Volumes",
			instanceTags.requirements(), e.volumes(e.attachedTo(byTag(instanceTags)))),

		lookup("describe_snapshots_for_all_snapshots", "List of EBS snapshots", "Snapshots", nil,
			e.snapshots(all)),
		unpaged(lookup("describe_snapshots_for_snapshot_ids", `EBS snapshots "{SnapshotIds}"`, "Snapshots",
			listOf("SnapshotIds", "Snapshot ids"), e.snapshots(byIDs("SnapshotIds")))),
		lookup("describe_snapshots_for_snapshot_names", `EBS snapshots named "{SnapshotNames}"`, "Snapshots",
			listOf("SnapshotNames", "Snapshot names"), e.snapshots(byFilter("tag:Name", "SnapshotNames"))),
		lookup("describe_snapshots_for_snapshot_tags", snapshotTags.label("EBS snapshots"), "Snapshots",
			snapshotTags.requirements(), e.snapshots(byTag(snapshotTags))),
		lookup("describe_snapshots_for_volume_ids", `EBS snapshots of volumes "{VolumeIds}"`, "Snapshots",
			listOf("VolumeIds", "Volume ids"), e.snapshots(byFilter("volume-id", "VolumeIds"))),
		lookup("describe_snapshots_for_volume_names", `EBS snapshots of volumes named "{VolumeNames}"`, "Snapshots",
			listOf("VolumeNames", "Volume names"), e.snapshots(e.ofVolumes(volumeNames))),
		lookup("describe_snapshots_for_volume_tags", volumeTags.label("EBS snapshots of volumes"), "Snapshots",
			volumeTags.requirements(), e.snapshots(e.ofVolumes(byTag(volumeTags)))),
		lookup("describe_snapshots_for_instance_ids", `EBS snapshots of instances "{InstanceIds}"`, "Snapshots",
			listOf("InstanceIds", "Instance ids"), e.snapshots(e.ofVolumes(attachedToIDs))),
		lookup("describe_snapshots_for_instance_names", `EBS snapshots of instances named "{InstanceNames}"`, "Snapshots",
			listOf("InstanceNames", "Instance names"), e.snapshots(e.ofVolumes(e.attachedTo(instanceNames)))),
		lookup("describe_snapshots_for_instance_tags", instanceTags.label("EBS snapshots of instances"), "Snapshots",
			instanceTags.requirements(), e.snapshots(e.ofVolumes(e.attachedTo(byTag(instanceTags))))),
	}

	return append(ops,
		&capability.Operation{
			Name:      "create_snapshot",
			Custom:    true,
			Requires:  []capability.Requirement{capability.Need("VolumeId", "Volume id is missing. It is required to create the snapshot.")},
			Label:     `Snapshot of volume "{VolumeId}" was started`,
			ResultKey: "SnapshotId",
			Errors:    []capability.ErrorRule{{Code: "InvalidVolume.NotFound", Message: `Volume "{VolumeId}" does not exist.`}},
			Execute:   call(c.EC2, awsapi.EC2API.CreateSnapshot),
		},
		&capability.Operation{
			Name:     "delete_snapshot",
			Custom:   true,
			Requires: []capability.Requirement{capability.Need("SnapshotId", "Snapshot id is missing. It is required to delete the snapshot.")},
			Label:    `Snapshot "{SnapshotId}" was deleted`,
			Errors: []capability.ErrorRule{
				{Code: "InvalidSnapshot.NotFound", Message: `Snapshot "{SnapshotId}" does not exist.`},
				{Code: "InvalidSnapshot.InUse", Message: `Snapshot "{SnapshotId}" is in use and was not deleted.`},
			},
			Execute: call(c.EC2, awsapi.EC2API.DeleteSnapshot),
		},
	)
}
