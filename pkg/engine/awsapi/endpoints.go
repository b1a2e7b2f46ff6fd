package awsapi

import "fmt"

// Service identifies a provider API the signed client can target.
// The value doubles as the SigV4 signing name.
type Service string

const (
	ServiceEC2        Service = "ec2"
	ServiceRDS        Service = "rds"
	ServiceELB        Service = "elasticloadbalancing"
	ServiceMonitoring Service = "monitoring"
	ServiceECS        Service = "ecs"
	ServiceLambda     Service = "lambda"
	ServiceCE         Service = "ce"
)

// apiVersions pins the Query API version sent with every request.
// JSON and REST services encode the version in the target or path instead.
var apiVersions = map[Service]string{
	ServiceEC2:        "2016-11-15",
	ServiceRDS:        "2014-10-31",
	ServiceELB:        "2015-12-01",
	ServiceMonitoring: "2010-08-01",
}

// jsonTargets pins the X-Amz-Target prefix for JSON 1.1 services.
var jsonTargets = map[Service]string{
	ServiceECS: "AmazonEC2ContainerServiceV20141113",
	ServiceCE:  "AWSInsightsIndexService",
}

// endpointURL resolves the regional service endpoint.
func endpointURL(svc Service, region string) string {
	return fmt.Sprintf("https://%s.%s.amazonaws.com/", svc, region)
}
