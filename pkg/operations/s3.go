package operations

import (
	"context"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/morezero/backup-assistant/pkg/awsapi"
	"github.com/morezero/backup-assistant/pkg/capability"
)

const serviceS3 = "s3"

var regionsRequired = capability.NeedAny("Region names are missing. Provide them as a comma separated list.", regionKeys...)

func s3Operations(c Clients) []*capability.Operation {
	api := c.S3
	bucket := []capability.Requirement{capability.Need("Bucket", "")}

	return []*capability.Operation{
		{
			Name:      "list_buckets",
			Label:     "List of S3 buckets",
			ResultKey: "Buckets",
			Execute:   call(api, awsapi.S3API.ListBuckets),
		},
		{
			Name:      "get_bucket_tagging",
			Requires:  bucket,
			Label:     `Tags of bucket "{Bucket}"`,
			ResultKey: "TagSet",
			Errors:    []capability.ErrorRule{{Code: "NoSuchTagSet", Message: `Bucket "{Bucket}" has no tags.`}},
			Execute:   call(api, awsapi.S3API.GetBucketTagging),
		},
		{
			Name:     "get_bucket_versioning",
			Custom:   true,
			Requires: bucket,
			Label:    `Versioning of bucket "{Bucket}"`,
			Execute:  call(api, awsapi.S3API.GetBucketVersioning),
		},
		{
			Name:      "get_bucket_replication",
			Custom:    true,
			Requires:  bucket,
			Label:     `Replication configuration of bucket "{Bucket}"`,
			ResultKey: "ReplicationConfiguration",
			Errors: []capability.ErrorRule{{
				Code:    "ReplicationConfigurationNotFoundError",
				Message: `Bucket "{Bucket}" has no replication configuration.`,
			}},
			Execute: call(api, awsapi.S3API.GetBucketReplication),
		},
		{
			Name:      "get_bucket_lifecycle_configuration",
			Custom:    true,
			Requires:  bucket,
			Label:     `Lifecycle rules of bucket "{Bucket}"`,
			ResultKey: "Rules",
			Errors: []capability.ErrorRule{{
				Code:    "NoSuchLifecycleConfiguration",
				Message: `Bucket "{Bucket}" has no lifecycle configuration.`,
			}},
			Execute: call(api, awsapi.S3API.GetBucketLifecycleConfiguration),
		},
		{
			Name:      "list_buckets_by_regions",
			Custom:    true,
			NoRepair:  true,
			Requires:  []capability.Requirement{regionsRequired},
			Label:     `List of S3 buckets in regions "` + ref(regionKeys) + `"`,
			ResultKey: "Buckets",
			Execute: func(ctx context.Context, req *capability.Request) (capability.Payload, error) {
				return bucketsBy(ctx, c, req, nil)
			},
		},
		{
			Name:      "list_buckets_by_regions_and_tags",
			Custom:    true,
			NoRepair:  true,
			Requires:  append([]capability.Requirement{regionsRequired}, bucketTags.requirements()...),
			Label:     bucketTags.label(`List of S3 buckets in regions "` + ref(regionKeys) + `"`),
			ResultKey: "Buckets",
			Execute: func(ctx context.Context, req *capability.Request) (capability.Payload, error) {
				filter := bucketTags.filter(req.Payload)
				return bucketsBy(ctx, c, req, &filter)
			},
		},
	}
}

// bucketsBy lists the buckets located in the requested regions, optionally keeping
// only those whose tags match filter.
func bucketsBy(ctx context.Context, c Clients, req *capability.Request, filter *tagFilter) (capability.Payload, error) {
	regions := req.Payload.FirstStrings(regionKeys...)
	client, err := c.S3(ctx, req.Region)
	if err != nil {
		return nil, err
	}

	var buckets []types.Bucket
	pages := s3.NewListBucketsPaginator(client, &s3.ListBucketsInput{})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, page.Buckets...)
	}

	matched := []map[string]any{}
	for _, b := range buckets {
		loc, err := client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: b.Name})
		if err != nil {
			return nil, err
		}
		region := string(loc.LocationConstraint)
		if region == "" {
			region = "us-east-1"
		}
		if !slices.Contains(regions, region) {
			continue
		}

		entry := map[string]any{"Name": aws.ToString(b.Name), "Region": region, "CreationDate": b.CreationDate}
		if filter != nil {
			tags, err := bucketTagSet(ctx, c, region, aws.ToString(b.Name))
			if err != nil {
				return nil, err
			}
			if !filter.match(tags) {
				continue
			}
			entry["Tags"] = tags
		}
		matched = append(matched, entry)
	}
	return result(map[string]any{"Buckets": matched}, nil)
}

// bucketTagSet reads the tags from the bucket's own region. A bucket without tags has
// an empty set.
func bucketTagSet(ctx context.Context, c Clients, region, bucket string) (map[string]string, error) {
	out, err := invoke(ctx, region, c.S3, awsapi.S3API.GetBucketTagging, &s3.GetBucketTaggingInput{Bucket: aws.String(bucket)})
	if err != nil {
		if capability.ErrorCode(err) == "NoSuchTagSet" {
			return map[string]string{}, nil
		}
		return nil, err
	}
	tags := make(map[string]string, len(out.TagSet))
	for _, t := range out.TagSet {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags, nil
}
