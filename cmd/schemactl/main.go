// Command schemactl applies the Redshift schema script outside of a
// CloudFormation deployment, using the same handler as the custom resource.
package main

func main() {
	Execute()
}
