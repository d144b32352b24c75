// aclscan - Folder Permission Auditor
// Scan. Report. Done.
package main

func main() {
	Execute()
}
