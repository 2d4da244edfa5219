package main

import (
	"fmt"
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"

	"github.com/kiquetal/ultimate-aws-data-engineering-book/stack"
)

const (
	projectTagKey   = "Project"
	projectTagValue = "ultimate-bootcamp-data-engineering"
)

func main() {
	defer jsii.Close()

	app := awscdk.NewApp(nil)

	// Add project tag to all resources
	awscdk.Tags_Of(app).Add(jsii.String(projectTagKey), jsii.String(projectTagValue), nil)

	props := &stack.Lab2StackProps{
		StackProps: awscdk.StackProps{Env: env()},
	}

	stackName := "Lab2Stack"
	if deployEnv(app) == "prod" {
		fmt.Println("Deploying to production environment")
		stackName = "Lab2ProdStack"
		props.Production = true
	}

	stack.NewLab2Stack(app, stackName, props)

	app.Synth(nil)
}

// deployEnv reads the target environment from the "env" context value, then
// DEPLOY_ENV.
func deployEnv(app awscdk.App) string {
	if v, ok := app.Node().TryGetContext(jsii.String("env")).(string); ok && v != "" {
		return v
	}
	if v := os.Getenv("DEPLOY_ENV"); v != "" {
		return v
	}
	return "default"
}

// env pins the stack to the CLI's account and region when the CDK CLI
// provides them; otherwise the stack is environment-agnostic.
func env() *awscdk.Environment {
	e := &awscdk.Environment{}
	if account := os.Getenv("CDK_DEFAULT_ACCOUNT"); account != "" {
		e.Account = jsii.String(account)
	}
	if region := os.Getenv("CDK_DEFAULT_REGION"); region != "" {
		e.Region = jsii.String(region)
	}
	return e
}
